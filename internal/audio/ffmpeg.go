package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maauso/media-chunker/internal/media"
	"github.com/maauso/media-chunker/internal/procrun"
)

const (
	// ffmpegTimeout bounds every ffmpeg invocation.
	ffmpegTimeout = 600 * time.Second
	// normalizedName is the intermediate file written into the work directory.
	normalizedName = "normalized.wav"
	// loudnormFilter targets -16 LUFS, -1.5 dB true peak, loudness range 11.
	loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"
)

// FFmpegSegmenter implements Segmenter using the ffmpeg CLI.
type FFmpegSegmenter struct {
	exec       procrun.Executor
	prober     media.DurationProber
	ffmpegPath string
	logger     *slog.Logger
}

// NewFFmpegSegmenter creates a new FFmpegSegmenter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegSegmenter(exec procrun.Executor, prober media.DurationProber, ffmpegPath string, logger *slog.Logger) *FFmpegSegmenter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSegmenter{exec: exec, prober: prober, ffmpegPath: ffmpegPath, logger: logger}
}

// Segment implements Segmenter.Segment: normalize, detect silences, probe the
// normalized duration, plan cuts, and extract each segment by stream copy.
func (s *FFmpegSegmenter) Segment(ctx context.Context, input, workDir string, opts SegmentOpts) ([]Segment, error) {
	if opts.ChunkSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSeconds, opts.ChunkSeconds)
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}

	normalized := filepath.Join(workDir, normalizedName)
	if err := s.normalize(ctx, input, normalized); err != nil {
		return nil, err
	}

	silences, err := s.detectSilences(ctx, normalized, opts)
	if err != nil {
		return nil, err
	}
	candidates := CutCandidates(silences)

	total, ok := s.prober.Duration(ctx, normalized)
	if !ok {
		return nil, ErrDurationUnavailable
	}

	spans := PlanSegments(candidates, total, opts.ChunkSeconds)
	if len(spans) == 0 {
		return nil, ErrNoSegments
	}

	s.logger.Info("segment start",
		slog.Int("chunk_seconds", opts.ChunkSeconds),
		slog.Float64("total_seconds", total),
		slog.Int("silences", len(silences)),
		slog.Int("planned", len(spans)),
	)

	segments := make([]Segment, 0, len(spans))
	for i, span := range spans {
		seg := Segment{
			Path:  filepath.Join(workDir, fmt.Sprintf("chunk_%04d.wav", i+1)),
			Index: i + 1,
			Start: span.Start,
			End:   span.End,
		}
		if err := s.extractSegment(ctx, normalized, seg); err != nil {
			return nil, fmt.Errorf("extract segment %d: %w", seg.Index, err)
		}
		segments = append(segments, seg)
	}

	s.logger.Info("segment done", slog.Int("count", len(segments)))
	return segments, nil
}

// normalize converts input to mono 16 kHz with EBU R128 loudness normalization.
func (s *FFmpegSegmenter) normalize(ctx context.Context, input, output string) error {
	s.logger.Info("normalize start", slog.String("input", input))
	argv := []string{
		s.ffmpegPath,
		"-y",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-af", loudnormFilter,
		output,
	}
	if err := s.run(ctx, argv); err != nil {
		return fmt.Errorf("%w: %w", ErrNormalizeFailed, err)
	}
	s.logger.Info("normalize done", slog.String("output", output))
	return nil
}

// detectSilences runs ffmpeg silencedetect and parses its stderr markers.
func (s *FFmpegSegmenter) detectSilences(ctx context.Context, input string, opts SegmentOpts) ([]SilenceInterval, error) {
	noise, minSilence := opts.NoiseDB, opts.MinSilenceSec
	if noise == 0 {
		noise = DefaultSegmentOpts().NoiseDB
	}
	if minSilence <= 0 {
		minSilence = DefaultSegmentOpts().MinSilenceSec
	}

	argv := []string{
		s.ffmpegPath,
		"-hide_banner",
		"-nostats",
		"-i", input,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", noise, minSilence),
		"-f", "null",
		"-",
	}
	res, err := s.exec.Run(ctx, argv, ffmpegTimeout)
	if err == nil {
		err = res.Check("ffmpeg")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSilenceDetectFailed, err)
	}
	return parseSilenceOutput(res.Stderr), nil
}

// extractSegment copies [seg.Start, seg.End) of input to seg.Path without re-encoding.
func (s *FFmpegSegmenter) extractSegment(ctx context.Context, input string, seg Segment) error {
	argv := []string{
		s.ffmpegPath,
		"-y",
		"-ss", fmt.Sprintf("%.3f", seg.Start),
		"-t", fmt.Sprintf("%.3f", seg.Duration()),
		"-i", input,
		"-c", "copy",
		seg.Path,
	}
	if err := s.run(ctx, argv); err != nil {
		return fmt.Errorf("%w: %w", ErrSegmentFailed, err)
	}
	return nil
}

// run executes ffmpeg and turns a non-zero exit into an error.
func (s *FFmpegSegmenter) run(ctx context.Context, argv []string) error {
	res, err := s.exec.Run(ctx, argv, ffmpegTimeout)
	if err != nil {
		return err
	}
	return res.Check("ffmpeg")
}

// Verify interface implementation at compile time.
var _ Segmenter = (*FFmpegSegmenter)(nil)
