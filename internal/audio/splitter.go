// Package audio normalizes audio and cuts it into duration-bounded segments,
// preferring cut points that land on detected silence.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// Static errors for segmentation. Each one aborts the job that hit it.
var (
	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("input file does not exist")
	// ErrNormalizeFailed is returned when loudness/sample-rate normalization fails.
	ErrNormalizeFailed = errors.New("ffmpeg normalization failed")
	// ErrSilenceDetectFailed is returned when the silence detection pass fails.
	ErrSilenceDetectFailed = errors.New("ffmpeg silence detection failed")
	// ErrDurationUnavailable is returned when the normalized file's duration cannot be probed.
	ErrDurationUnavailable = errors.New("duration unavailable for normalized audio")
	// ErrSegmentFailed is returned when cutting a segment fails.
	ErrSegmentFailed = errors.New("ffmpeg segment extraction failed")
	// ErrNoSegments is returned when segmentation yields nothing.
	ErrNoSegments = errors.New("no segments produced")
	// ErrInvalidChunkSeconds is returned for a non-positive target length.
	ErrInvalidChunkSeconds = errors.New("chunk seconds must be positive")
)

// SegmentOpts configures segmentation.
type SegmentOpts struct {
	// ChunkSeconds is the target segment length T. Segments aim for [T-5, T].
	ChunkSeconds int

	// NoiseDB is the silence detection threshold in dB.
	// Default: -30 dB.
	NoiseDB float64

	// MinSilenceSec is the minimum silence duration to detect, in seconds.
	// Default: 0.5 s.
	MinSilenceSec float64
}

// DefaultSegmentOpts returns the default segmentation options.
func DefaultSegmentOpts() SegmentOpts {
	return SegmentOpts{
		ChunkSeconds:  20,
		NoiseDB:       -30,
		MinSilenceSec: 0.5,
	}
}

// SilenceInterval is a detected low-energy range, in seconds.
type SilenceInterval struct {
	Start float64
	End   float64
}

// Segment is one cut produced from the normalized audio.
type Segment struct {
	// Path is the local segment file.
	Path string
	// Index is the 1-based position of the segment.
	Index int
	// Start is the offset in the source, in seconds.
	Start float64
	// End is the end offset in the source, in seconds.
	End float64
}

// Duration returns the realized length of the segment in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// String returns a human-readable representation for logging.
func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %.3f-%.3f", s.Index, s.Start, s.End)
}

// Segmenter cuts an audio file into ordered segments.
type Segmenter interface {
	// Segment normalizes input into workDir and cuts it into segments there.
	// The returned segments are ordered and contiguous. The caller owns the
	// files and is responsible for cleaning up workDir.
	Segment(ctx context.Context, input, workDir string, opts SegmentOpts) ([]Segment, error)
}
