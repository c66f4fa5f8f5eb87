package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/media-chunker/internal/audio"
	"github.com/maauso/media-chunker/internal/media"
	"github.com/maauso/media-chunker/internal/storage"
	"github.com/maauso/media-chunker/internal/webhook"
)

// Static errors for the ingest service.
var (
	// ErrSourceIDRequired is returned when a job is created without a source ID.
	ErrSourceIDRequired = errors.New("source ID is required")
	// ErrSourceURLRequired is returned when a job is created without a source URL.
	ErrSourceURLRequired = errors.New("source URL is required")
	// ErrPipelinePanic is returned when a pipeline stage panicked.
	ErrPipelinePanic = errors.New("pipeline panicked")
)

// Progress milestones reported while a job runs.
const (
	progressDownloaded = 0.10
	progressNormalize  = 0.15
	progressSegmented  = 0.50
	progressUploadSpan = 0.89
)

// Fetcher retrieves a remote source into a working directory.
type Fetcher interface {
	Fetch(ctx context.Context, url, workDir string) (string, error)
}

// CreateInput contains the caller-supplied parameters of a new job.
type CreateInput struct {
	// SourceID groups the produced segments.
	SourceID string
	// URL is the remote media to ingest.
	URL string
	// ChunkSeconds overrides the default target segment length when > 0.
	ChunkSeconds int
	// WebhookURL overrides the default callback URL when set.
	WebhookURL string
}

// IngestService drives ingest jobs: download, probe, segment, upload,
// then notify the job's webhook.
type IngestService struct {
	registry  Registry
	fetcher   Fetcher
	prober    media.DurationProber
	segmenter audio.Segmenter
	storage   storage.Storage
	notifier  webhook.Notifier
	logger    *slog.Logger

	workRoot            string
	defaultChunkSeconds int
	defaultWebhookURL   string
	keyPrefix           string
	segmentOpts         audio.SegmentOpts
}

// ServiceOption configures an IngestService.
type ServiceOption func(*IngestService)

// WithWorkRoot sets the directory under which per-job working directories are created.
func WithWorkRoot(dir string) ServiceOption {
	return func(s *IngestService) {
		if dir != "" {
			s.workRoot = dir
		}
	}
}

// WithDefaultChunkSeconds sets the target segment length used when a job has none.
func WithDefaultChunkSeconds(n int) ServiceOption {
	return func(s *IngestService) {
		if n > 0 {
			s.defaultChunkSeconds = n
		}
	}
}

// WithDefaultWebhookURL sets the callback URL used when a job has none.
func WithDefaultWebhookURL(url string) ServiceOption {
	return func(s *IngestService) {
		s.defaultWebhookURL = url
	}
}

// WithKeyPrefix sets the storage key prefix for uploaded segments.
func WithKeyPrefix(prefix string) ServiceOption {
	return func(s *IngestService) {
		s.keyPrefix = prefix
	}
}

// WithSegmentOpts sets the silence detection tuning. ChunkSeconds is
// always taken from the job.
func WithSegmentOpts(opts audio.SegmentOpts) ServiceOption {
	return func(s *IngestService) {
		s.segmentOpts = opts
	}
}

// NewIngestService creates a new IngestService. notifier may be nil, which
// disables webhooks.
func NewIngestService(
	registry Registry,
	fetcher Fetcher,
	prober media.DurationProber,
	segmenter audio.Segmenter,
	store storage.Storage,
	notifier webhook.Notifier,
	logger *slog.Logger,
	opts ...ServiceOption,
) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IngestService{
		registry:            registry,
		fetcher:             fetcher,
		prober:              prober,
		segmenter:           segmenter,
		storage:             store,
		notifier:            notifier,
		logger:              logger,
		workRoot:            filepath.Join("data", "tmp"),
		defaultChunkSeconds: audio.DefaultSegmentOpts().ChunkSeconds,
		keyPrefix:           "audio_chunks",
		segmentOpts:         audio.DefaultSegmentOpts(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob registers a new queued job, applying the default chunk length
// and webhook URL where the input has none.
func (s *IngestService) CreateJob(ctx context.Context, in CreateInput) (*Job, error) {
	if in.SourceID == "" {
		return nil, ErrSourceIDRequired
	}
	if !storage.ValidSourceID(in.SourceID) {
		return nil, fmt.Errorf("%w: %q", storage.ErrInvalidSourceID, in.SourceID)
	}
	if in.URL == "" {
		return nil, ErrSourceURLRequired
	}

	chunkSeconds := in.ChunkSeconds
	if chunkSeconds <= 0 {
		chunkSeconds = s.defaultChunkSeconds
	}
	webhookURL := in.WebhookURL
	if webhookURL == "" {
		webhookURL = s.defaultWebhookURL
	}

	j := s.registry.Create(ctx, NewParams{
		SourceID:     in.SourceID,
		SourceURL:    in.URL,
		ChunkSeconds: chunkSeconds,
		WebhookURL:   webhookURL,
	})

	s.logger.Info("creating new job",
		slog.String("job_id", j.ID),
		slog.String("source_id", j.SourceID),
		slog.String("url", j.SourceURL),
		slog.Int("chunk_seconds", j.ChunkSeconds),
	)
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *IngestService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.registry.Get(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *IngestService) ListJobs(ctx context.Context) []*Job {
	return s.registry.List(ctx)
}

// Run drives the job to completion or failure. Whatever happens, the job's
// webhook is notified and its working directory removed before Run returns;
// neither of those can change the recorded outcome. The returned error is
// the one recorded on the job.
func (s *IngestService) Run(ctx context.Context, jobID string) (err error) {
	j, err := s.registry.Get(ctx, jobID)
	if err != nil {
		return err
	}

	workDir := filepath.Join(s.workRoot, j.ID)
	defer storage.CleanupDir(workDir)

	var payload webhook.Payload
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPipelinePanic, r)
		}
		if err != nil {
			s.logger.Error("job failed",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
			s.registry.Fail(ctx, j.ID, err.Error())
			payload = webhook.FailedPayload(j.ID, j.SourceID, j.SourceURL, err.Error())
		}
		s.notify(ctx, j, payload)
	}()

	payload, err = s.process(ctx, j, workDir)
	return err
}

// process runs the pipeline stages in order and returns the success payload.
func (s *IngestService) process(ctx context.Context, j *Job, workDir string) (webhook.Payload, error) {
	s.registry.MarkRunning(ctx, j.ID, "downloading")
	s.logger.Info("job start", slog.String("job_id", j.ID), slog.String("url", j.SourceURL))

	downloaded, err := s.fetcher.Fetch(ctx, j.SourceURL, workDir)
	if err != nil {
		return webhook.Payload{}, err
	}
	s.registry.UpdateProgress(ctx, j.ID, progressDownloaded, "download complete")

	var totalDuration *float64
	if d, ok := s.prober.Duration(ctx, downloaded); ok {
		totalDuration = &d
	}

	chunkSeconds := j.ChunkSeconds
	if chunkSeconds <= 0 {
		chunkSeconds = s.defaultChunkSeconds
	}

	s.registry.UpdateProgress(ctx, j.ID, progressNormalize, "normalizing audio")
	opts := s.segmentOpts
	opts.ChunkSeconds = chunkSeconds
	segments, err := s.segmenter.Segment(ctx, downloaded, workDir, opts)
	if err != nil {
		return webhook.Payload{}, err
	}
	s.logger.Info("chunking done", slog.String("job_id", j.ID), slog.Int("chunks", len(segments)))
	s.registry.UpdateProgress(ctx, j.ID, progressSegmented, "chunking complete; uploading")

	addresses, err := s.upload(ctx, j, segments)
	if err != nil {
		return webhook.Payload{}, err
	}

	s.registry.Complete(ctx, j.ID, Result{
		Chunks:           addresses,
		TotalDurationSec: totalDuration,
		ChunkSeconds:     chunkSeconds,
	})
	s.logger.Info("job completed", slog.String("job_id", j.ID), slog.Int("chunks", len(addresses)))

	return webhook.CompletedPayload(j.ID, j.SourceID, j.SourceURL, addresses, totalDuration, chunkSeconds,
		webhook.BuildChunkMeta(segments, addresses)), nil
}

// upload stores every segment in order and reports progress after each one.
func (s *IngestService) upload(ctx context.Context, j *Job, segments []audio.Segment) ([]string, error) {
	total := len(segments)
	addresses := make([]string, 0, total)
	for i, seg := range segments {
		key := storage.ObjectKey(s.keyPrefix, j.SourceID, filepath.Base(seg.Path))
		addr, err := s.storage.Upload(ctx, seg.Path, key, storage.ContentTypeWAV)
		if err != nil {
			return nil, fmt.Errorf("upload segment %d: %w", seg.Index, err)
		}
		addresses = append(addresses, addr)

		done := i + 1
		progress := progressDownloaded + progressUploadSpan*float64(done)/float64(max(1, total))
		s.registry.UpdateProgress(ctx, j.ID, progress, fmt.Sprintf("uploaded %d/%d", done, total))
		if done%5 == 0 || done == total {
			s.logger.Info("uploaded",
				slog.String("job_id", j.ID),
				slog.Int("done", done),
				slog.Int("total", total),
				slog.String("address", addr),
			)
		}
	}
	return addresses, nil
}

// notify delivers the payload to the job's webhook, if any. Failures are
// logged and dropped.
func (s *IngestService) notify(ctx context.Context, j *Job, payload webhook.Payload) {
	if s.notifier == nil || j.WebhookURL == "" {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("webhook panicked", slog.String("job_id", j.ID), slog.Any("panic", r))
		}
	}()
	if err := s.notifier.Notify(ctx, j.WebhookURL, payload); err != nil {
		s.logger.Warn("webhook failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}
