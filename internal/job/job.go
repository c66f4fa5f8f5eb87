// Package job provides the Job record for media ingest jobs, the Registry
// that owns every record, and the IngestService that drives one job through
// download, segmentation, and upload.
package job

import (
	"errors"
	"slices"
	"time"

	"github.com/maauso/media-chunker/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusQueued indicates the job was accepted and is waiting to run.
	StatusQueued Status = "queued"
	// StatusRunning indicates the pipeline is working on the job.
	StatusRunning Status = "running"
	// StatusCompleted indicates every segment was uploaded.
	StatusCompleted Status = "completed"
	// StatusFailed indicates a stage failed; Message holds the reason.
	StatusFailed Status = "failed"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusCompleted, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// IsTerminal returns true if no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is attached to a job when it completes.
type Result struct {
	// Chunks are the storage addresses of the segments, in order.
	Chunks []string
	// TotalDurationSec is the probed source duration, nil when unknown.
	TotalDurationSec *float64
	// ChunkSeconds is the target segment length that was used.
	ChunkSeconds int
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Chunks:       slices.Clone(r.Chunks),
		ChunkSeconds: r.ChunkSeconds,
	}
	if r.TotalDurationSec != nil {
		d := *r.TotalDurationSec
		out.TotalDurationSec = &d
	}
	return out
}

// Job is one ingestion request and its lifecycle state.
// Records are owned by a Registry; values handed out are snapshots.
type Job struct {
	// ID is the unique identifier for this job.
	ID string
	// SourceID is the caller-supplied grouping key.
	SourceID string
	// SourceURL is the remote media to ingest.
	SourceURL string
	// Status is the current job state.
	Status Status
	// Progress is the fraction of work done, in [0, 1].
	Progress float64
	// Message is the latest human-readable status note or failure reason.
	Message string
	// Result is set if and only if Status is StatusCompleted.
	Result *Result
	// ChunkSeconds is the target segment length for this job.
	ChunkSeconds int
	// WebhookURL receives the completion callback; empty disables it.
	WebhookURL string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// NewParams holds the caller-supplied fields of a new job.
type NewParams struct {
	SourceID     string
	SourceURL    string
	ChunkSeconds int
	WebhookURL   string
}

// New creates a new queued Job with a generated ID.
func New(p NewParams) *Job {
	return NewWithID(id.Generate(), p)
}

// NewWithID creates a new queued Job with the specified ID.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, p NewParams) *Job {
	now := time.Now()
	return &Job{
		ID:           jobID,
		SourceID:     p.SourceID,
		SourceURL:    p.SourceURL,
		Status:       StatusQueued,
		ChunkSeconds: p.ChunkSeconds,
		WebhookURL:   p.WebhookURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// transitionTo changes the status and stamps the matching timestamps.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) transitionTo(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// clampProgress restricts p to [0, 1].
func clampProgress(p float64) float64 {
	return max(0, min(1, p))
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	c := *j
	c.Result = j.Result.clone()
	return &c
}
