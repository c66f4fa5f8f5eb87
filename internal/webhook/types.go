package webhook

import (
	"math"

	"github.com/maauso/media-chunker/internal/audio"
)

// Status values reported to the callback.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ChunkMeta describes one uploaded segment. Offsets are whole seconds.
type ChunkMeta struct {
	Index       int     `json:"index"`
	StartSec    int     `json:"startSec"`
	EndSec      int     `json:"endSec"`
	DurationSec int     `json:"durationSec"`
	GCSURI      *string `json:"gcsUri"`
	// LocalPath is set instead of GCSURI when a segment was kept on disk.
	LocalPath string `json:"localPath,omitempty"`
}

// Meta carries the raw job figures.
type Meta struct {
	TotalDurationSec *float64 `json:"total_duration_sec"`
	ChunkSeconds     *int     `json:"chunk_seconds"`
}

// Payload is the JSON body POSTed to a job's webhook.
// Camel-cased fields mirror the downstream importer's schema.
type Payload struct {
	JobID                string      `json:"job_id"`
	SourceID             string      `json:"source_id"`
	Status               string      `json:"status"`
	Chunks               []string    `json:"chunks"`
	Error                *string     `json:"error"`
	Meta                 Meta        `json:"meta"`
	TotalDurationSeconds *int        `json:"totalDurationSeconds"`
	ChunkSeconds         *int        `json:"chunkSeconds"`
	OriginalURI          *string     `json:"originalUri"`
	ChunksMeta           []ChunkMeta `json:"chunksMeta"`
}

// CompletedPayload builds the payload for a successful job.
func CompletedPayload(jobID, sourceID, sourceURL string, addresses []string,
	totalDurationSec *float64, chunkSeconds int, chunks []ChunkMeta,
) Payload {
	p := Payload{
		JobID:        jobID,
		SourceID:     sourceID,
		Status:       StatusCompleted,
		Chunks:       addresses,
		Meta:         Meta{TotalDurationSec: totalDurationSec, ChunkSeconds: &chunkSeconds},
		ChunkSeconds: &chunkSeconds,
		ChunksMeta:   chunks,
	}
	if totalDurationSec != nil {
		total := int(*totalDurationSec)
		p.TotalDurationSeconds = &total
	}
	if sourceURL != "" {
		p.OriginalURI = &sourceURL
	}
	return p
}

// FailedPayload builds the payload for a failed job.
func FailedPayload(jobID, sourceID, sourceURL, errMsg string) Payload {
	p := Payload{
		JobID:    jobID,
		SourceID: sourceID,
		Status:   StatusFailed,
		Error:    &errMsg,
	}
	if sourceURL != "" {
		p.OriginalURI = &sourceURL
	}
	return p
}

// BuildChunkMeta pairs each segment with its storage address, using the
// segment's realized offsets rounded to whole seconds.
// addresses[i] belongs to segments[i]; an empty address leaves gcsUri null.
func BuildChunkMeta(segments []audio.Segment, addresses []string) []ChunkMeta {
	out := make([]ChunkMeta, 0, len(segments))
	for i, seg := range segments {
		m := ChunkMeta{
			Index:       seg.Index,
			StartSec:    roundSec(seg.Start),
			EndSec:      roundSec(seg.End),
			DurationSec: roundSec(seg.Duration()),
		}
		if i < len(addresses) && addresses[i] != "" {
			addr := addresses[i]
			m.GCSURI = &addr
		}
		out = append(out, m)
	}
	return out
}

func roundSec(v float64) int {
	return int(math.Round(v))
}
