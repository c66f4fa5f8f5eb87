// Package media probes media files with ffprobe.
package media

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/media-chunker/internal/procrun"
)

// probeTimeout bounds a single ffprobe invocation.
const probeTimeout = 60 * time.Second

// DurationProber reports the duration of a media file.
type DurationProber interface {
	// Duration returns the duration in seconds, or ok=false when it is unknown.
	Duration(ctx context.Context, path string) (seconds float64, ok bool)
}

// FFprobeProber implements DurationProber using the ffprobe CLI.
type FFprobeProber struct {
	exec        procrun.Executor
	ffprobePath string
	logger      *slog.Logger
}

// NewFFprobeProber creates a new FFprobeProber.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobeProber(exec procrun.Executor, ffprobePath string, logger *slog.Logger) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFprobeProber{exec: exec, ffprobePath: ffprobePath, logger: logger}
}

// Duration returns the container duration of path in seconds.
// Any failure, including unparsable output, yields ok=false; it never errors.
func (p *FFprobeProber) Duration(ctx context.Context, path string) (float64, bool) {
	p.logger.Info("probe duration", slog.String("file", path))

	argv := []string{
		p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	res, err := p.exec.Run(ctx, argv, probeTimeout)
	if err != nil || res.ExitCode != 0 {
		p.logger.Warn("probe failed",
			slog.String("file", path),
			slog.Int("exit_code", res.ExitCode),
			slog.Any("error", err),
		)
		return 0, false
	}

	seconds, ok := ParseDuration(res.Stdout)
	if ok {
		p.logger.Info("probe ok", slog.Float64("seconds", seconds))
	}
	return seconds, ok
}

// ParseDuration parses ffprobe's bare duration output such as "123.456000\n".
// Negative, infinite and NaN values count as unparsable.
func ParseDuration(out string) (float64, bool) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || math.IsInf(seconds, 0) || math.IsNaN(seconds) || seconds < 0 {
		return 0, false
	}
	return seconds, true
}

// Verify interface implementation at compile time.
var _ DurationProber = (*FFprobeProber)(nil)
