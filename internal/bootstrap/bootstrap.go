// Package bootstrap provides dependency initialization for the media chunker.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/media-chunker/internal/audio"
	"github.com/maauso/media-chunker/internal/config"
	"github.com/maauso/media-chunker/internal/fetch"
	"github.com/maauso/media-chunker/internal/job"
	"github.com/maauso/media-chunker/internal/media"
	"github.com/maauso/media-chunker/internal/procrun"
	"github.com/maauso/media-chunker/internal/storage"
	"github.com/maauso/media-chunker/internal/webhook"
)

// Toolchain bundles the wrappers around the external media tools.
type Toolchain struct {
	Runner    *procrun.Runner
	Prober    *media.FFprobeProber
	Segmenter *audio.FFmpegSegmenter
}

// NewToolchain creates the process runner and the ffprobe/ffmpeg wrappers.
func NewToolchain(cfg *config.Config, logger *slog.Logger) Toolchain {
	runner := procrun.NewRunner(procrun.WithLogger(logger))
	prober := media.NewFFprobeProber(runner, cfg.FFprobePath, logger)
	return Toolchain{
		Runner:    runner,
		Prober:    prober,
		Segmenter: audio.NewFFmpegSegmenter(runner, prober, cfg.FFmpegPath, logger),
	}
}

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	IngestService *job.IngestService
	Storage       storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	tools := NewToolchain(cfg, logger)
	fetcher := fetch.NewFetcher(tools.Runner, FetchOptions(cfg), fetch.WithLogger(logger))

	notifier := webhook.NewClient(
		webhook.WithAuthToken(cfg.WebhookAuthToken),
		webhook.WithTimeout(cfg.WebhookTimeout()),
		webhook.WithLogger(logger),
	)

	segmentOpts := audio.DefaultSegmentOpts()
	segmentOpts.ChunkSeconds = cfg.ChunkSeconds

	svc := job.NewIngestService(
		job.NewMemoryRegistry(),
		fetcher,
		tools.Prober,
		tools.Segmenter,
		store,
		notifier,
		logger,
		job.WithWorkRoot(cfg.TempDir),
		job.WithDefaultChunkSeconds(cfg.ChunkSeconds),
		job.WithDefaultWebhookURL(cfg.DefaultWebhookURL),
		job.WithKeyPrefix(cfg.S3KeyPrefix),
		job.WithSegmentOpts(segmentOpts),
	)

	return &Dependencies{
		IngestService: svc,
		Storage:       store,
	}, nil
}

// FetchOptions maps the yt-dlp settings of cfg onto fetch.Options.
func FetchOptions(cfg *config.Config) fetch.Options {
	return fetch.Options{
		BinaryPath:    cfg.YTDLPPath,
		Timeout:       cfg.YTTimeout(),
		Retries:       cfg.YTRetries,
		SocketTimeout: cfg.YTSocketTimeout,
		ForceIPv4:     cfg.YTForceIPv4,
		NoPlaylist:    cfg.YTNoPlaylist,
		ExtraArgs:     cfg.YTExtraArgs,
	}
}

// NewS3Storage creates the S3 backend, or returns storage.ErrS3NotConfigured
// when no bucket and region are set.
func NewS3Storage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.S3Storage, error) {
	if !cfg.S3Enabled() {
		return nil, storage.ErrS3NotConfigured
	}
	s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	return s3Store, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := NewS3Storage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.LocalStorageDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("dir", localStore.Root()),
	)
	return localStore, nil
}

// ManualWorkDir returns the working directory used for a manual run of sourceID.
func ManualWorkDir(cfg *config.Config, sourceID string) string {
	return filepath.Join(cfg.TempDir, "manual_"+sourceID)
}
