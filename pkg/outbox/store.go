package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoJobDue is returned by ClaimNext when no pending job is ready.
	ErrNoJobDue = errors.New("outbox: no job due")

	// ErrJobNotFound is returned when a job identifier matches nothing.
	ErrJobNotFound = errors.New("outbox: job not found")
)

// JobStore persists email jobs. Implementations must make ClaimNext
// atomic: a claimed job transitions to processing before it is
// returned, so no other claim can see it.
type JobStore interface {
	// Create persists a new job.
	Create(ctx context.Context, job *Job) error

	// ClaimNext atomically claims the oldest-created pending job whose
	// NextAttemptAt is not after now, marking it processing. Returns
	// ErrNoJobDue when nothing is ready.
	ClaimNext(ctx context.Context, now time.Time) (*Job, error)

	// Complete marks a processing job as delivered. Terminal.
	Complete(ctx context.Context, id uuid.UUID) error

	// Retry returns a processing job to pending with the given failed
	// attempt count, error message and earliest next attempt.
	Retry(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time) error

	// Fail marks a processing job as permanently failed. Terminal.
	Fail(ctx context.Context, id uuid.UUID, attempts int, lastError string) error

	// FindByID fetches a job by identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// RequeueStale returns jobs stuck in processing longer than the
	// given age back to pending. Recovery tool for crashed workers; not
	// run automatically.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
