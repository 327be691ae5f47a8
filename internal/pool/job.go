package pool

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a validation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is a batch of probe targets plus lifecycle metadata. T is the target
// record type and R the probe result type; the coordination logic never
// looks inside either.
type Job[T, R any] struct {
	ID             string     `json:"job_id"`
	Targets        []T        `json:"targets"`
	Status         Status     `json:"status"`
	WorkerID       string     `json:"worker_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Results        []R        `json:"results,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	TimeoutSeconds int        `json:"timeout_seconds"`
}

// NewJob creates a pending job with a fresh id. Requeued jobs go through
// here too, so a retired job's replacement never shares its id.
func NewJob[T, R any](targets []T, timeoutSeconds int) *Job[T, R] {
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultJobTimeoutSeconds
	}
	return &Job[T, R]{
		ID:             uuid.New().String(),
		Targets:        targets,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
		TimeoutSeconds: timeoutSeconds,
	}
}

// LeaseExpired reports whether the job's lease has outlived its timeout.
// Only meaningful for jobs in the active table.
func (j *Job[T, R]) LeaseExpired(now time.Time) bool {
	if j.StartedAt == nil {
		return false
	}
	return now.Sub(*j.StartedAt) > time.Duration(j.TimeoutSeconds)*time.Second
}
