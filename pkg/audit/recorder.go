package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenvoice/backoffice/pkg/auth"
	"github.com/zenvoice/backoffice/pkg/requestmeta"
)

// Recorder builds and persists audit records. All writes are
// best-effort: failures are logged and swallowed, never returned to the
// code path that triggered the audit.
type Recorder struct {
	storage Storage
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRecorder creates a recorder over the given storage.
func NewRecorder(storage Storage, logger *slog.Logger) *Recorder {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{storage: storage, logger: logger}
}

// Record persists an audit record synchronously. Attribution (actor,
// IP, user agent, method, URL) is read from ctx at this moment, which
// is what lets arbitrary entity types be audited without their business
// code passing identity around. Records for the audit entity itself are
// suppressed to prevent recursion.
func (r *Recorder) Record(ctx context.Context, action Action, entity, entityID string, changes map[string]Change) {
	if entity == EntityName {
		return
	}

	rec := Record{
		ID:        uuid.New().String(),
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Changes:   changes,
		CreatedAt: time.Now(),
	}

	if id, ok := auth.IdentityFromContext(ctx); ok {
		rec.ActorID = id.ID
	}
	if meta, ok := requestmeta.FromContext(ctx); ok {
		rec.IP = meta.IP
		rec.UserAgent = meta.UserAgent
		rec.Method = meta.Method
		rec.URL = meta.URL
	}

	if err := r.storage.Store(ctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "failed to persist audit record",
			slog.String("entity", entity),
			slog.String("entity_id", entityID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
	}
}

// RecordDetached persists a record in a background task. The write may
// complete after the response has been sent; its failure is observable
// only via logs. The context's values survive but its cancellation does
// not, so a finished request cannot abort the write.
func (r *Recorder) RecordDetached(ctx context.Context, action Action, entity, entityID string, changes map[string]Change) {
	if entity == EntityName {
		return
	}

	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("panic in audit write",
					slog.String("entity", entity),
					slog.Any("panic", p))
			}
		}()
		r.Record(detached, action, entity, entityID, changes)
	}()
}

// Flush blocks until all detached writes have finished. Used during
// graceful shutdown and by tests.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
