package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenvoice/backoffice/pkg/audit"
	"github.com/zenvoice/backoffice/pkg/auth"
	"github.com/zenvoice/backoffice/pkg/requestmeta"
	"github.com/zenvoice/backoffice/pkg/store"
)

type invoice struct {
	ID     string
	Number string
	Total  int
	Paid   bool
}

func (i invoice) EntityName() string { return "invoices" }
func (i invoice) EntityID() string   { return i.ID }
func (i invoice) Fields() map[string]any {
	return map[string]any{
		"number": i.Number,
		"total":  i.Total,
		"paid":   i.Paid,
	}
}

func (i invoice) WithFields(set map[string]any) store.Entity {
	if v, ok := set["number"].(string); ok {
		i.Number = v
	}
	if v, ok := set["total"].(int); ok {
		i.Total = v
	}
	if v, ok := set["paid"].(bool); ok {
		i.Paid = v
	}
	return i
}

// auditEntity pretends to be the audit log collection itself.
type auditEntity struct{ ID string }

func (a auditEntity) EntityName() string     { return audit.EntityName }
func (a auditEntity) EntityID() string       { return a.ID }
func (a auditEntity) Fields() map[string]any { return map[string]any{} }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAudited[T store.Entity](t *testing.T) (*audit.Audited[T], *audit.MemoryStorage, *audit.Recorder) {
	t.Helper()
	storage := audit.NewMemoryStorage()
	recorder := audit.NewRecorder(storage, discardLogger())
	return audit.NewAudited(store.NewMemoryStore[T](), recorder), storage, recorder
}

func TestAudited_Insert(t *testing.T) {
	t.Parallel()

	t.Run("records create with new values only", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-1", Number: "A-100", Total: 250}))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 1)
		rec := records[0]
		assert.Equal(t, audit.ActionCreate, rec.Action)
		assert.Equal(t, "invoices", rec.Entity)
		assert.Equal(t, "inv-1", rec.EntityID)
		require.Len(t, rec.Changes, 3)
		for field, change := range rec.Changes {
			assert.Nil(t, change.Old, "create change %q must not carry an old value", field)
		}
		assert.Equal(t, "A-100", rec.Changes["number"].New)
	})

	t.Run("failed insert records nothing", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-1"}))
		recorder.Flush()

		err := audited.Insert(context.Background(), invoice{ID: "inv-1"})
		require.ErrorIs(t, err, store.ErrDuplicateID)
		recorder.Flush()

		assert.Len(t, storage.Records(), 1)
	})
}

func TestAudited_Save(t *testing.T) {
	t.Parallel()

	t.Run("records only changed fields", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-1", Number: "A-100", Total: 250}))
		recorder.Flush()

		require.NoError(t, audited.Save(context.Background(), invoice{ID: "inv-1", Number: "A-100", Total: 300}))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 2)
		rec := records[1]
		assert.Equal(t, audit.ActionUpdate, rec.Action)
		require.Len(t, rec.Changes, 1)
		assert.Equal(t, 250, rec.Changes["total"].Old)
		assert.Equal(t, 300, rec.Changes["total"].New)
	})

	t.Run("no-op save records nothing", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		inv := invoice{ID: "inv-1", Number: "A-100", Total: 250}
		require.NoError(t, audited.Insert(context.Background(), inv))
		recorder.Flush()

		require.NoError(t, audited.Save(context.Background(), inv))
		recorder.Flush()

		assert.Len(t, storage.Records(), 1)
	})

	t.Run("failed save records nothing", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		err := audited.Save(context.Background(), invoice{ID: "missing"})
		require.ErrorIs(t, err, store.ErrNotFound)
		recorder.Flush()

		assert.Empty(t, storage.Records())
	})
}

func TestAudited_UpdateOne(t *testing.T) {
	t.Parallel()

	t.Run("diffs pre and post snapshots", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-1", Number: "A-100", Total: 250}))
		recorder.Flush()

		require.NoError(t, audited.UpdateOne(context.Background(), store.Filter{"number": "A-100"}, map[string]any{"paid": true}))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 2)
		rec := records[1]
		assert.Equal(t, audit.ActionUpdate, rec.Action)
		assert.Equal(t, "inv-1", rec.EntityID)
		require.Len(t, rec.Changes, 1)
		assert.Equal(t, false, rec.Changes["paid"].Old)
		assert.Equal(t, true, rec.Changes["paid"].New)
	})

	t.Run("degrades to sentinel when pre-snapshot unavailable", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		recorder := audit.NewRecorder(storage, discardLogger())
		audited := audit.NewAudited[invoice](&readFailingStore{}, recorder)

		require.NoError(t, audited.UpdateOne(context.Background(), store.Filter{"number": "A-100"}, map[string]any{"paid": true}))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 1)
		change, ok := records[0].Changes[audit.DiffUnavailableKey]
		require.True(t, ok, "sentinel change set expected")
		assert.Equal(t, "unavailable", change.New)
		assert.Empty(t, records[0].EntityID)
	})
}

func TestAudited_Delete(t *testing.T) {
	t.Parallel()

	t.Run("records identity only", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-1", Number: "A-100"}))
		recorder.Flush()

		require.NoError(t, audited.DeleteByID(context.Background(), "inv-1"))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 2)
		rec := records[1]
		assert.Equal(t, audit.ActionDelete, rec.Action)
		assert.Equal(t, "inv-1", rec.EntityID)
		assert.Empty(t, rec.Changes)
	})

	t.Run("delete by filter captures id before removal", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)
		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-7", Number: "B-7"}))
		recorder.Flush()

		require.NoError(t, audited.DeleteOne(context.Background(), store.Filter{"number": "B-7"}))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 2)
		assert.Equal(t, "inv-7", records[1].EntityID)
	})
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	t.Run("audit entity is never audited", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[auditEntity](t)
		require.NoError(t, audited.Insert(context.Background(), auditEntity{ID: "rec-1"}))
		recorder.Flush()

		assert.Empty(t, storage.Records())
	})

	t.Run("attributes actor and request metadata", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)

		ctx := auth.WithIdentity(context.Background(), auth.Identity{ID: "user-42", Role: "admin"})
		ctx = requestmeta.WithMeta(ctx, requestmeta.Meta{
			IP:        "203.0.113.9",
			UserAgent: "test-agent",
			Method:    "POST",
			URL:       "/admin/tenants",
		})

		require.NoError(t, audited.Insert(ctx, invoice{ID: "inv-1"}))
		recorder.Flush()

		records := storage.Records()
		require.Len(t, records, 1)
		rec := records[0]
		assert.Equal(t, "user-42", rec.ActorID)
		assert.Equal(t, "203.0.113.9", rec.IP)
		assert.Equal(t, "test-agent", rec.UserAgent)
		assert.Equal(t, "POST", rec.Method)
		assert.Equal(t, "/admin/tenants", rec.URL)
	})

	t.Run("storage failure never reaches the caller", func(t *testing.T) {
		t.Parallel()

		recorder := audit.NewRecorder(failingStorage{}, discardLogger())
		audited := audit.NewAudited(store.NewMemoryStore[invoice](), recorder)

		require.NoError(t, audited.Insert(context.Background(), invoice{ID: "inv-1"}))
		recorder.Flush()
	})

	t.Run("detached write survives request cancellation", func(t *testing.T) {
		t.Parallel()

		audited, storage, recorder := newAudited[invoice](t)

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, audited.Insert(ctx, invoice{ID: "inv-1"}))
		cancel()
		recorder.Flush()

		assert.Len(t, storage.Records(), 1)
	})
}

type failingStorage struct{}

func (failingStorage) Store(ctx context.Context, record audit.Record) error {
	return errors.New("storage down")
}

// readFailingStore errors on every read but accepts writes, to exercise
// the degraded-diff path.
type readFailingStore struct{}

func (readFailingStore) FindByID(ctx context.Context, id string) (invoice, error) {
	return invoice{}, errors.New("read failed")
}

func (readFailingStore) FindOne(ctx context.Context, filter store.Filter) (invoice, error) {
	return invoice{}, errors.New("read failed")
}

func (readFailingStore) Find(ctx context.Context, filter store.Filter) ([]invoice, error) {
	return nil, errors.New("read failed")
}

func (readFailingStore) Insert(ctx context.Context, entity invoice) error { return nil }
func (readFailingStore) Save(ctx context.Context, entity invoice) error   { return nil }
func (readFailingStore) UpdateOne(ctx context.Context, filter store.Filter, set map[string]any) error {
	return nil
}
func (readFailingStore) DeleteByID(ctx context.Context, id string) error          { return nil }
func (readFailingStore) DeleteOne(ctx context.Context, filter store.Filter) error { return nil }
