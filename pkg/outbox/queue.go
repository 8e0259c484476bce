package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue enqueues email jobs. It never waits for delivery and never
// deduplicates: every call creates a distinct job.
type Queue struct {
	store JobStore
}

// NewQueue creates an enqueuer over the given job store.
func NewQueue(store JobStore) *Queue {
	return &Queue{store: store}
}

// EnqueueOption customizes a job before it is persisted.
type EnqueueOption func(*Job)

// WithTextBody sets the plain-text body.
func WithTextBody(text string) EnqueueOption {
	return func(j *Job) { j.TextBody = text }
}

// WithAttachments attaches files to the email.
func WithAttachments(attachments ...Attachment) EnqueueOption {
	return func(j *Job) { j.Attachments = attachments }
}

// WithTransportOverride sends this job through a specific SMTP endpoint
// instead of the system-wide default.
func WithTransportOverride(cfg TransportConfig) EnqueueOption {
	return func(j *Job) { j.Transport = &cfg }
}

// Enqueue persists a pending job due immediately and returns its
// identifier.
func (q *Queue) Enqueue(ctx context.Context, to, subject, htmlBody string, opts ...EnqueueOption) (uuid.UUID, error) {
	now := time.Now()
	job := &Job{
		ID:            uuid.New(),
		To:            to,
		Subject:       subject,
		HTMLBody:      htmlBody,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	for _, opt := range opts {
		opt(job)
	}

	if err := q.store.Create(ctx, job); err != nil {
		return uuid.UUID{}, fmt.Errorf("enqueue email to %s: %w", to, err)
	}
	return job.ID, nil
}
