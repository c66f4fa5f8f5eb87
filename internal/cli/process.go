// Package cli implements the chunkaudio command line: segmenting a local
// audio file outside the HTTP worker and writing a chunk manifest.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/maauso/media-chunker/internal/audio"
	"github.com/maauso/media-chunker/internal/media"
	"github.com/maauso/media-chunker/internal/storage"
	"github.com/maauso/media-chunker/internal/webhook"
)

// Static errors for manual processing.
var (
	// ErrInputNotFound is returned when the input audio file does not exist.
	ErrInputNotFound = errors.New("input file not found")
	// ErrUploadNotConfigured is returned when an upload is requested without S3.
	ErrUploadNotConfigured = errors.New("upload requested but S3 is not configured; set S3_BUCKET and S3_REGION or use --no-upload")
	// ErrWorkDirBusy is returned when another run holds the source's work directory.
	ErrWorkDirBusy = errors.New("work directory is in use by another run")
	// ErrSourceIDRequired is returned when no source ID is given.
	ErrSourceIDRequired = errors.New("source ID is required")
)

// Manifest is the chunk listing written for a manual run.
type Manifest struct {
	SourceID             string              `json:"sourceId"`
	TotalDurationSeconds *int                `json:"totalDurationSeconds"`
	ChunkSeconds         int                 `json:"chunkSeconds"`
	ChunksMeta           []webhook.ChunkMeta `json:"chunksMeta"`
}

// ProcessOptions describes one manual run.
type ProcessOptions struct {
	SourceID     string
	InputPath    string
	ChunkSeconds int
	Upload       bool
	// WorkDir receives the normalized file and the segments.
	WorkDir string
	// OutputDir receives <source_id>_chunks.json.
	OutputDir string
}

// Processor segments a local file and optionally uploads the segments.
type Processor struct {
	prober      media.DurationProber
	segmenter   audio.Segmenter
	storage     storage.Storage
	logger      *slog.Logger
	keyPrefix   string
	segmentOpts audio.SegmentOpts
}

// NewProcessor creates a Processor. store may be nil when nothing is uploaded.
func NewProcessor(prober media.DurationProber, segmenter audio.Segmenter, store storage.Storage,
	keyPrefix string, logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		prober:      prober,
		segmenter:   segmenter,
		storage:     store,
		logger:      logger,
		keyPrefix:   keyPrefix,
		segmentOpts: audio.DefaultSegmentOpts(),
	}
}

// Process runs the segmentation and writes the manifest. It returns the
// manifest and the path it was written to.
func (p *Processor) Process(ctx context.Context, opts ProcessOptions) (*Manifest, string, error) {
	if opts.SourceID == "" {
		return nil, "", ErrSourceIDRequired
	}
	if !storage.ValidSourceID(opts.SourceID) {
		return nil, "", fmt.Errorf("%w: %q", storage.ErrInvalidSourceID, opts.SourceID)
	}
	if _, err := os.Stat(opts.InputPath); err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrInputNotFound, opts.InputPath)
	}
	if opts.Upload && p.storage == nil {
		return nil, "", ErrUploadNotConfigured
	}

	if err := os.MkdirAll(opts.WorkDir, 0o750); err != nil {
		return nil, "", fmt.Errorf("create work directory: %w", err)
	}
	lock := flock.New(filepath.Clean(opts.WorkDir) + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, "", fmt.Errorf("lock work directory: %w", err)
	}
	if !locked {
		return nil, "", fmt.Errorf("%w: %s", ErrWorkDirBusy, opts.WorkDir)
	}
	defer func() { _ = lock.Unlock() }()

	p.logger.Info("probing duration", slog.String("file", opts.InputPath))
	var total *float64
	if d, ok := p.prober.Duration(ctx, opts.InputPath); ok {
		total = &d
	}

	segOpts := p.segmentOpts
	segOpts.ChunkSeconds = opts.ChunkSeconds
	p.logger.Info("normalizing and chunking", slog.Int("chunk_seconds", opts.ChunkSeconds))
	segments, err := p.segmenter.Segment(ctx, opts.InputPath, opts.WorkDir, segOpts)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info("chunks ready", slog.Int("count", len(segments)))

	var addresses []string
	if opts.Upload {
		addresses = make([]string, 0, len(segments))
		for _, seg := range segments {
			key := storage.ObjectKey(p.keyPrefix, opts.SourceID, filepath.Base(seg.Path))
			addr, err := p.storage.Upload(ctx, seg.Path, key, storage.ContentTypeWAV)
			if err != nil {
				return nil, "", fmt.Errorf("upload segment %d: %w", seg.Index, err)
			}
			addresses = append(addresses, addr)
		}
	}

	chunks := webhook.BuildChunkMeta(segments, addresses)
	if !opts.Upload {
		for i, seg := range segments {
			abs, err := filepath.Abs(seg.Path)
			if err != nil {
				abs = seg.Path
			}
			chunks[i].LocalPath = abs
		}
	}

	m := &Manifest{
		SourceID:     opts.SourceID,
		ChunkSeconds: opts.ChunkSeconds,
		ChunksMeta:   chunks,
	}
	if total != nil {
		rounded := int(math.Round(*total))
		m.TotalDurationSeconds = &rounded
	}

	outFile, err := writeManifest(opts.OutputDir, m)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info("manifest written", slog.String("file", outFile))
	return m, outFile, nil
}

func writeManifest(dir string, m *Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, m.SourceID+"_chunks.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}
