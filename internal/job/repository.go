package job

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Registry owns every Job record and exposes only atomic operations on them.
// It acts as a port in the hexagonal architecture pattern.
//
// Writes on an unknown ID, and writes that would move a job out of a terminal
// state, are no-ops. Reads return snapshots that callers may modify freely.
type Registry interface {
	// Create stores a new queued job and returns a snapshot of it.
	Create(ctx context.Context, p NewParams) *Job

	// MarkRunning moves a queued job to running. A non-empty message
	// replaces the current one.
	MarkRunning(ctx context.Context, id, message string)

	// UpdateProgress records progress, clamped into [0, 1]. A non-empty
	// message replaces the current one.
	UpdateProgress(ctx context.Context, id string, progress float64, message string)

	// Complete marks the job completed with progress 1 and attaches result.
	Complete(ctx context.Context, id string, result Result)

	// Fail marks the job failed and records errMsg as its message.
	// Progress is left as last recorded.
	Fail(ctx context.Context, id, errMsg string)

	// Get returns a snapshot of the job.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id string) (*Job, error)

	// List returns snapshots of all jobs, newest first.
	List(ctx context.Context) []*Job
}
