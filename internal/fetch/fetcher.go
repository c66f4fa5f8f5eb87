// Package fetch retrieves a remote media source as a local audio file using
// the yt-dlp command-line tool.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/media-chunker/internal/procrun"
)

// Static errors for fetch operations.
var (
	// ErrDownloadFailed is returned when every download attempt failed.
	ErrDownloadFailed = errors.New("download failed")
	// ErrURLRequired is returned when no source URL is provided.
	ErrURLRequired = errors.New("fetch: source URL is required")
)

const (
	// maxAttempts caps the number of download attempts regardless of configuration.
	maxAttempts = 10
	// audioFormat is the extension yt-dlp extracts audio to.
	audioFormat = "wav"
	// outputBase is the fixed file name (without extension) of the download.
	outputBase = "download"
	// errTailLen is how much of the tool's stderr is kept in failure reasons.
	errTailLen = 4000
)

// Options tunes the yt-dlp invocation.
type Options struct {
	// BinaryPath is the yt-dlp executable. Defaults to "yt-dlp".
	BinaryPath string
	// Timeout bounds each attempt. Zero disables it.
	Timeout time.Duration
	// Retries is both the yt-dlp --retries value and the attempt count (capped at 10, at least 1).
	Retries int
	// SocketTimeout is passed as --socket-timeout, in seconds.
	SocketTimeout int
	// ForceIPv4 adds --force-ipv4.
	ForceIPv4 bool
	// NoPlaylist adds --no-playlist so a playlist URL yields only the single item.
	NoPlaylist bool
	// ExtraArgs is a whitespace-separated list of additional yt-dlp arguments.
	ExtraArgs string
}

// DefaultOptions returns the default yt-dlp tuning.
func DefaultOptions() Options {
	return Options{
		BinaryPath:    "yt-dlp",
		Timeout:       300 * time.Second,
		Retries:       8,
		SocketTimeout: 30,
		ForceIPv4:     true,
		NoPlaylist:    true,
	}
}

// Attempts returns how many download attempts the options allow.
func (o Options) Attempts() int {
	return max(1, min(maxAttempts, o.Retries))
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher downloads sources with bounded retries and linear backoff.
type Fetcher struct {
	exec   procrun.Executor
	opts   Options
	logger *slog.Logger
	sleep  sleepFunc
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSleep replaces the backoff sleep (for testing).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) {
		if fn != nil {
			f.sleep = fn
		}
	}
}

// NewFetcher creates a Fetcher that runs yt-dlp through exec.
func NewFetcher(exec procrun.Executor, opts Options, fopts ...FetcherOption) *Fetcher {
	if opts.BinaryPath == "" {
		opts.BinaryPath = "yt-dlp"
	}
	f := &Fetcher{
		exec:   exec,
		opts:   opts,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range fopts {
		opt(f)
	}
	return f
}

// Fetch downloads url into workDir and returns the path of the extracted audio file.
// An attempt only succeeds when yt-dlp exits 0 and a .wav file is present in
// workDir afterwards. Between attempts it sleeps 2s, 4s, 6s, ...
func (f *Fetcher) Fetch(ctx context.Context, url, workDir string) (string, error) {
	if url == "" {
		return "", ErrURLRequired
	}
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}

	argv := f.buildArgs(url, workDir)
	attempts := f.opts.Attempts()
	f.logger.Info("download start", slog.String("url", url), slog.Int("attempts", attempts))

	var lastErr string
	for attempt := 1; attempt <= attempts; attempt++ {
		f.logger.Info("download attempt", slog.Int("attempt", attempt), slog.Int("of", attempts))

		res, err := f.exec.Run(ctx, argv, f.opts.Timeout)
		switch {
		case errors.Is(err, procrun.ErrTimeout):
			lastErr = fmt.Sprintf("yt-dlp timed out after %s", f.opts.Timeout)
			f.logger.Warn("download timeout", slog.String("error", lastErr))
		case err != nil:
			if ctx.Err() != nil {
				return "", fmt.Errorf("download cancelled: %w", ctx.Err())
			}
			lastErr = err.Error()
			f.logger.Warn("download failed", slog.String("error", lastErr))
		case res.ExitCode != 0:
			lastErr = fmt.Sprintf("yt-dlp exit=%d err_tail=%s", res.ExitCode, procrun.Tail(res.Stderr, errTailLen))
			f.logger.Warn("download failed", slog.String("error", lastErr))
		default:
			path, ok, ferr := findAudio(workDir)
			if ferr != nil {
				return "", fmt.Errorf("scan work directory: %w", ferr)
			}
			if ok {
				f.logger.Info("download done", slog.String("file", path))
				return path, nil
			}
			lastErr = "yt-dlp reported success but output wav not found"
			f.logger.Warn("download failed", slog.String("error", lastErr))
		}

		if attempt < attempts {
			if err := f.sleep(ctx, time.Duration(2*attempt)*time.Second); err != nil {
				return "", fmt.Errorf("download cancelled: %w", err)
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %s", ErrDownloadFailed, attempts, lastErr)
}

// buildArgs assembles the yt-dlp argument vector.
func (f *Fetcher) buildArgs(url, workDir string) []string {
	argv := []string{
		f.opts.BinaryPath,
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", audioFormat,
		"-o", filepath.Join(workDir, outputBase+".%(ext)s"),
	}
	if f.opts.NoPlaylist {
		argv = append(argv, "--no-playlist")
	}
	argv = append(argv, "--retries", strconv.Itoa(f.opts.Retries))
	argv = append(argv, "--socket-timeout", strconv.Itoa(f.opts.SocketTimeout))
	if f.opts.ForceIPv4 {
		argv = append(argv, "--force-ipv4")
	}
	argv = append(argv, strings.Fields(f.opts.ExtraArgs)...)
	return append(argv, url)
}

// findAudio returns the first regular file in dir with the audio extension.
func findAudio(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), "."+audioFormat) {
			return filepath.Join(dir, e.Name()), true, nil
		}
	}
	return "", false, nil
}
