package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJobStore implements JobStore in memory, for tests and local
// development.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *MemoryJobStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryJobStore) ClaimNext(ctx context.Context, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *Job
	for _, job := range s.jobs {
		if job.Status != StatusPending || job.NextAttemptAt.After(now) {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, ErrNoJobDue
	}

	oldest.Status = StatusProcessing
	claimed := now
	oldest.ClaimedAt = &claimed

	clone := *oldest
	return &clone, nil
}

func (s *MemoryJobStore) Complete(ctx context.Context, id uuid.UUID) error {
	return s.mutate(id, func(job *Job) {
		job.Status = StatusCompleted
		job.ClaimedAt = nil
	})
}

func (s *MemoryJobStore) Retry(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time) error {
	return s.mutate(id, func(job *Job) {
		job.Status = StatusPending
		job.Attempts = attempts
		job.LastError = lastError
		job.NextAttemptAt = nextAttemptAt
		job.ClaimedAt = nil
	})
}

func (s *MemoryJobStore) Fail(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.mutate(id, func(job *Job) {
		job.Status = StatusFailed
		job.Attempts = attempts
		job.LastError = lastError
		job.ClaimedAt = nil
	})
}

func (s *MemoryJobStore) FindByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryJobStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var n int64
	for _, job := range s.jobs {
		if job.Status == StatusProcessing && job.ClaimedAt != nil && job.ClaimedAt.Before(cutoff) {
			job.Status = StatusPending
			job.NextAttemptAt = time.Now()
			job.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *MemoryJobStore) mutate(id uuid.UUID, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}
