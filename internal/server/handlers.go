package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/media-chunker/internal/job"
	"github.com/maauso/media-chunker/internal/storage"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.IngestService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool

	// runs tracks pipeline goroutines started by Ingest.
	runs     sync.WaitGroup
	inFlight atomic.Int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, Ingest only creates the job and returns immediately
// without starting the pipeline.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.IngestService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	// source_id ends up in storage keys and directory names.
	_ = v.RegisterValidation("source_id", func(fl validator.FieldLevel) bool {
		return storage.ValidSourceID(fl.Field().String())
	})

	h := &Handlers{
		service:            service,
		validator:          v,
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ingest handles POST /ingest and POST /ingest/youtube requests.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	created, err := h.service.CreateJob(r.Context(), job.CreateInput{
		SourceID:     req.SourceID,
		URL:          req.URL,
		ChunkSeconds: req.ChunkSeconds,
		WebhookURL:   req.WebhookURL,
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// The pipeline outlives the request, so it runs on a detached context.
	if h.enableAsyncProcess {
		h.startRun(context.WithoutCancel(r.Context()), created.ID)
	}

	h.logger.Info("job scheduled",
		slog.String("job_id", created.ID),
		slog.String("source_id", created.SourceID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	writeJSON(w, http.StatusAccepted, IngestResponse{
		JobID:  created.ID,
		Status: string(created.Status),
	})
}

// startRun drives jobID in a tracked goroutine.
func (h *Handlers) startRun(ctx context.Context, jobID string) {
	h.inFlight.Add(1)
	h.runs.Go(func() {
		defer h.inFlight.Add(-1)
		if runErr := h.service.Run(ctx, jobID); runErr != nil {
			h.logger.Error("background processing failed",
				slog.String("job_id", jobID),
				slog.String("error", runErr.Error()),
			)
		}
	})
}

// InFlight returns the number of pipeline runs still executing.
func (h *Handlers) InFlight() int {
	return int(h.inFlight.Load())
}

// Wait blocks until every pipeline run started by Ingest has returned, so
// each job reaches a terminal state, is reported to its webhook and has its
// working directory removed. It returns ctx.Err() if ctx ends first.
// Call it after the HTTP server stopped accepting requests.
func (h *Handlers) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.ListJobs(r.Context())
	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		JobID:    j.ID,
		SourceID: j.SourceID,
		Status:   string(j.Status),
		Progress: j.Progress,
		Message:  j.Message,
	}
	if j.Result != nil {
		chunks := j.Result.Chunks
		if chunks == nil {
			chunks = []string{}
		}
		resp.Result = &JobResult{
			Chunks:           chunks,
			TotalDurationSec: j.Result.TotalDurationSec,
			ChunkSeconds:     j.Result.ChunkSeconds,
		}
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
