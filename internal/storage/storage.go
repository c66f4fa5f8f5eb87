// Package storage publishes finished segments to durable storage.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for S3 and local disk.
package storage

import (
	"context"
	"errors"
	"path"
	"regexp"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when an upload to S3 is requested
	// without a bucket and region.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrUploadFailed is returned when an object could not be stored.
	ErrUploadFailed = errors.New("upload failed")
	// ErrInvalidSourceID is returned when a source ID cannot be used as a
	// single key or path segment.
	ErrInvalidSourceID = errors.New("source ID must be 1-128 characters of letters, digits, '.', '_' or '-' and not start with '.'")
)

// sourceIDPattern keeps a source ID to one path segment that cannot be "." or "..".
var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`)

// ValidSourceID reports whether id is safe to embed in object keys,
// working directory names and manifest file names.
func ValidSourceID(id string) bool {
	return sourceIDPattern.MatchString(id)
}

// ContentTypeWAV is the content type of uploaded segments.
const ContentTypeWAV = "audio/wav"

// Storage persists local files under a destination key.
// Implementations must be safe to call repeatedly with different keys.
type Storage interface {
	// Upload stores the file at localPath under key and returns its address,
	// an opaque URI such as s3://bucket/key or file:///abs/path.
	Upload(ctx context.Context, localPath, key, contentType string) (address string, err error)
}

// ObjectKey builds the destination key for a segment: <prefix>/<sourceID>/<fileName>.
// An empty prefix is omitted.
func ObjectKey(prefix, sourceID, fileName string) string {
	if prefix == "" {
		return path.Join(sourceID, fileName)
	}
	return path.Join(prefix, sourceID, fileName)
}
