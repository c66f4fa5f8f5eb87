package audio

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// bandWidth is how far below the target length a segment may end.
const bandWidth = 5.0

// Span is a planned [Start, End) cut range in seconds.
type Span struct {
	Start float64
	End   float64
}

// PlanSegments greedily chooses cut points over [0, total).
//
// From each start it takes the first candidate in [start+T-5, start+T],
// falling back to min(start+T, total). Candidates at or before the current
// start and candidates past total are never used, so every span has a
// positive length and the plan ends exactly at total.
func PlanSegments(candidates []float64, total float64, chunkSeconds int) []Span {
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) || chunkSeconds <= 0 {
		return nil
	}
	target := float64(chunkSeconds)

	var spans []Span
	for start := 0.0; start < total; {
		lower := start + (target - bandWidth)
		upper := start + target
		cut := math.Min(upper, total)

		for _, p := range candidates {
			if p > upper || p > total {
				break
			}
			if p >= lower && p > start {
				cut = p
				break
			}
		}

		spans = append(spans, Span{Start: start, End: cut})
		start = cut
	}
	return spans
}

// CutCandidates flattens both boundaries of every interval into one ascending list.
func CutCandidates(silences []SilenceInterval) []float64 {
	points := make([]float64, 0, len(silences)*2)
	for _, s := range silences {
		points = append(points, s.Start, s.End)
	}
	sort.Float64s(points)
	return points
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(\S+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(\S+)`)

	errNoMarker = errors.New("no silence marker")
)

type markerKind int

const (
	markerStart markerKind = iota + 1
	markerEnd
)

// parseSilenceLine extracts a silence_start or silence_end timestamp from one
// line of silencedetect output.
func parseSilenceLine(line string) (markerKind, float64, error) {
	kind := markerKind(0)
	var raw string
	if m := silenceStartRe.FindStringSubmatch(line); m != nil {
		kind, raw = markerStart, m[1]
	} else if m := silenceEndRe.FindStringSubmatch(line); m != nil {
		kind, raw = markerEnd, m[1]
	} else {
		return 0, 0, errNoMarker
	}

	val, err := strconv.ParseFloat(strings.TrimRight(raw, "|"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse silence timestamp %q: %w", raw, err)
	}
	return kind, val, nil
}

// parseSilenceOutput pairs silence_start/silence_end markers from ffmpeg's
// silencedetect stderr. Malformed lines are skipped, as is an end marker with
// no preceding start.
func parseSilenceOutput(output string) []SilenceInterval {
	var intervals []SilenceInterval
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentStart float64
	hasStart := false

	for scanner.Scan() {
		kind, val, err := parseSilenceLine(scanner.Text())
		if err != nil {
			continue
		}
		switch kind {
		case markerStart:
			currentStart = val
			hasStart = true
		case markerEnd:
			if !hasStart {
				continue
			}
			intervals = append(intervals, SilenceInterval{Start: currentStart, End: val})
			hasStart = false
		}
	}

	return intervals
}
