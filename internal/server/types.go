// Package server provides the HTTP front door of the media chunker.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// IngestRequest is the HTTP request body for scheduling an ingest job.
type IngestRequest struct {
	// SourceID groups the produced segments under one storage prefix.
	SourceID string `json:"source_id" validate:"required,source_id"`
	// URL is the remote media to download.
	URL string `json:"url" validate:"required,url"`
	// ChunkSeconds overrides the configured target segment length.
	ChunkSeconds int `json:"chunk_seconds,omitempty" validate:"omitempty,min=5,max=120"`
	// WebhookURL overrides the configured completion callback.
	WebhookURL string `json:"webhook_url,omitempty" validate:"omitempty,url"`
}

// IngestResponse is the HTTP response after scheduling a job.
type IngestResponse struct {
	// JobID is the unique identifier for the created job.
	JobID string `json:"job_id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResult is the outcome of a completed job.
type JobResult struct {
	Chunks           []string `json:"chunks"`
	TotalDurationSec *float64 `json:"total_duration_sec"`
	ChunkSeconds     int      `json:"chunk_seconds"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// JobID is the unique identifier for the job.
	JobID string `json:"job_id"`
	// SourceID is the caller-supplied grouping key.
	SourceID string `json:"source_id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the fraction of work done, in [0, 1].
	Progress float64 `json:"progress"`
	// Message is the latest status note or failure reason.
	Message string `json:"message,omitempty"`
	// Result is present once the job completed.
	Result *JobResult `json:"result,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
