package job

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	job := New(NewParams{SourceID: "src-1", SourceURL: "https://example.com/v", ChunkSeconds: 20})

	if job.ID == "" {
		t.Error("expected job to have an ID")
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("expected progress 0, got %v", job.Progress)
	}
	if job.SourceID != "src-1" || job.ChunkSeconds != 20 {
		t.Errorf("unexpected fields: %+v", job)
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if job.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
	if job.Result != nil {
		t.Error("expected no result on a new job")
	}
}

func TestNewWithID(t *testing.T) {
	id := "test-job-123"
	job := NewWithID(id, NewParams{SourceID: "src"})

	if job.ID != id {
		t.Errorf("expected ID %s, got %s", id, job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, job.Status)
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		// Valid transitions from queued
		{"queued to running", StatusQueued, StatusRunning, false},
		{"queued to completed", StatusQueued, StatusCompleted, false},
		{"queued to failed", StatusQueued, StatusFailed, false},
		// Valid transitions from running
		{"running to completed", StatusRunning, StatusCompleted, false},
		{"running to failed", StatusRunning, StatusFailed, false},
		// Invalid transitions
		{"running to queued", StatusRunning, StatusQueued, true},
		{"running to running", StatusRunning, StatusRunning, true},
		{"queued to queued", StatusQueued, StatusQueued, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("test", NewParams{})
			job.Status = tt.from

			err := job.transitionTo(tt.to)

			if tt.wantErr && err == nil {
				t.Errorf("expected error for transition %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_TransitionTimestamps(t *testing.T) {
	job := NewWithID("test", NewParams{})
	before := time.Now()

	if err := job.transitionTo(StatusRunning); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.StartedAt.Before(before) {
		t.Error("expected StartedAt to be set after test start")
	}
	if !job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be unset while running")
	}

	if err := job.transitionTo(StatusFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on failure")
	}
}

func TestJob_CannotTransitionFromTerminalState(t *testing.T) {
	terminalStates := []Status{StatusCompleted, StatusFailed}
	allStates := []Status{StatusQueued, StatusRunning, StatusCompleted, StatusFailed}

	for _, terminal := range terminalStates {
		for _, target := range allStates {
			t.Run(string(terminal)+"_to_"+string(target), func(t *testing.T) {
				job := NewWithID("test", NewParams{})
				job.Status = terminal

				err := job.transitionTo(target)
				if err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			})
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{Status("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestClampProgress(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{0.5, 0.5},
		{0, 0},
		{1, 1},
		{-0.3, 0}, // Clamped to 0
		{1.7, 1},  // Clamped to 1
	}

	for _, tt := range tests {
		if got := clampProgress(tt.input); got != tt.expected {
			t.Errorf("clampProgress(%v): expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}

func TestJob_Clone(t *testing.T) {
	total := 42.0
	job := NewWithID("test", NewParams{SourceID: "src"})
	job.Status = StatusCompleted
	job.Progress = 1
	job.Result = &Result{Chunks: []string{"s3://b/1"}, TotalDurationSec: &total, ChunkSeconds: 20}

	clone := job.Clone()

	// Verify clone has same values
	if clone.ID != job.ID {
		t.Errorf("expected ID %s, got %s", job.ID, clone.ID)
	}
	if clone.Status != job.Status {
		t.Errorf("expected Status %s, got %s", job.Status, clone.Status)
	}
	if clone.Result.Chunks[0] != "s3://b/1" || *clone.Result.TotalDurationSec != 42 {
		t.Errorf("unexpected cloned result: %+v", clone.Result)
	}

	// Verify clone is independent
	clone.Status = StatusFailed
	if job.Status == StatusFailed {
		t.Error("modifying clone should not affect original")
	}

	// Verify result is independent
	clone.Result.Chunks[0] = "changed"
	*clone.Result.TotalDurationSec = 1
	if job.Result.Chunks[0] != "s3://b/1" || *job.Result.TotalDurationSec != 42 {
		t.Error("modifying clone result should not affect original")
	}
}

func TestJob_Clone_NilResult(t *testing.T) {
	clone := NewWithID("test", NewParams{}).Clone()
	if clone.Result != nil {
		t.Error("expected nil result in clone")
	}
}
