package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// LocalStorage implements the Storage interface using local disk.
// Uploads are copied under a root directory and addressed with file:// URIs,
// which lets the pipeline run without any object store configured.
type LocalStorage struct {
	root   string
	logger *slog.Logger
}

// NewLocalStorage creates a new LocalStorage instance.
// The root parameter specifies where uploaded files are stored.
// If root is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(root string, logger *slog.Logger) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "media-chunker")
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &LocalStorage{root: abs, logger: logger}, nil
}

// Root returns the absolute storage directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Upload copies localPath to <root>/<key> and returns its file:// URI.
// Keys that are absolute or climb out of root are rejected.
func (s *LocalStorage) Upload(ctx context.Context, localPath, key, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: key %q escapes the storage directory", ErrUploadFailed, key)
	}
	dst := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("%w: create directory: %w", ErrUploadFailed, err)
	}

	n, err := copyFile(localPath, dst)
	if err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("%w: %s: %w", ErrUploadFailed, key, err)
	}

	s.logger.Debug("stored locally",
		slog.String("key", key),
		slog.String("size", humanize.Bytes(uint64(n))),
	)

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dst)}).String(), nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src) // #nosec G304 - path is produced by the segmenter
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 - path is rooted in the storage directory
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Verify interface implementation at compile time.
var _ Storage = (*LocalStorage)(nil)
