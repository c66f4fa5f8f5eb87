package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderManifestTable lays the manifest out as a table, one row per chunk.
func renderManifestTable(m *Manifest) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Start", "End", "Duration", "Location"})

	for _, c := range m.ChunksMeta {
		loc := c.LocalPath
		if c.GCSURI != nil {
			loc = *c.GCSURI
		}
		tw.AppendRow(table.Row{
			strconv.Itoa(c.Index),
			clock(c.StartSec),
			clock(c.EndSec),
			fmt.Sprintf("%ds", c.DurationSec),
			loc,
		})
	}

	total := "unknown"
	if m.TotalDurationSeconds != nil {
		total = clock(*m.TotalDurationSeconds)
	}
	tw.AppendFooter(table.Row{"", "", "", humanize.Comma(int64(len(m.ChunksMeta))) + " chunks", "total " + total})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// clock formats whole seconds as h:mm:ss or m:ss.
func clock(sec int) string {
	d := time.Duration(sec) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
