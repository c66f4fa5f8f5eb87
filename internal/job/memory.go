package job

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryRegistry implements Registry.
var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry is an in-memory implementation of Registry.
// It uses a map with RWMutex for thread-safe access. Jobs live only as long
// as the process.
type MemoryRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

// NewMemoryRegistry creates a new in-memory job registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		jobs: make(map[string]*Job),
	}
}

// Create stores a new queued job.
func (r *MemoryRegistry) Create(_ context.Context, p NewParams) *Job {
	j := New(p)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)
	return j.Clone()
}

// MarkRunning moves a queued job to running.
func (r *MemoryRegistry) MarkRunning(_ context.Context, id, message string) {
	r.update(id, func(j *Job) {
		if j.Status == StatusRunning || j.transitionTo(StatusRunning) == nil {
			setMessage(j, message)
		}
	})
}

// UpdateProgress records clamped progress on a non-terminal job.
func (r *MemoryRegistry) UpdateProgress(_ context.Context, id string, progress float64, message string) {
	r.update(id, func(j *Job) {
		if j.Status.IsTerminal() {
			return
		}
		j.Progress = clampProgress(progress)
		setMessage(j, message)
	})
}

// Complete marks the job completed and attaches a copy of result.
func (r *MemoryRegistry) Complete(_ context.Context, id string, result Result) {
	r.update(id, func(j *Job) {
		if j.transitionTo(StatusCompleted) != nil {
			return
		}
		j.Progress = 1
		j.Result = result.clone()
	})
}

// Fail marks the job failed with errMsg.
func (r *MemoryRegistry) Fail(_ context.Context, id, errMsg string) {
	r.update(id, func(j *Job) {
		if j.transitionTo(StatusFailed) != nil {
			return
		}
		j.Message = errMsg
	})
}

// Get retrieves a job by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRegistry) Get(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// List returns all jobs, newest first.
// Returns clones to prevent external mutations.
func (r *MemoryRegistry) List(_ context.Context) []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Job, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		result = append(result, r.jobs[r.order[i]].Clone())
	}
	return result
}

// update applies fn to the stored job under the write lock.
// Unknown IDs are ignored.
func (r *MemoryRegistry) update(id string, fn func(j *Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	fn(j)
}

func setMessage(j *Job, message string) {
	if message != "" {
		j.Message = message
	}
	j.UpdatedAt = time.Now()
}
