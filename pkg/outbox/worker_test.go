package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenvoice/backoffice/pkg/outbox"
)

type fakeTransport struct {
	mu    sync.Mutex
	sent  []outbox.Message
	confs []outbox.TransportConfig
	err   error
	block chan struct{}
}

func (t *fakeTransport) Send(ctx context.Context, cfg outbox.TransportConfig, msg outbox.Message) error {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, msg)
	t.confs = append(t.confs, cfg)
	return nil
}

func (t *fakeTransport) sentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorker(t *testing.T, store outbox.JobStore, transport outbox.Transport) *outbox.Worker {
	t.Helper()
	w, err := outbox.NewWorker(store, transport, outbox.TransportConfig{Host: "smtp.example.com", Port: 587}, outbox.WithLogger(discardLogger()))
	require.NoError(t, err)
	return w
}

func TestWorker_Tick(t *testing.T) {
	t.Parallel()

	t.Run("delivers and completes one job", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		transport := &fakeTransport{}
		worker := newWorker(t, store, transport)

		id, err := queue.Enqueue(context.Background(), "a@example.com", "hello", "<p>hi</p>")
		require.NoError(t, err)

		worker.Tick(context.Background())

		require.Equal(t, 1, transport.sentCount())
		job, err := store.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, outbox.StatusCompleted, job.Status)
		assert.Equal(t, 0, job.Attempts, "success on first try keeps the failed-attempt count at zero")
		assert.Nil(t, job.ClaimedAt)
	})

	t.Run("no due job is a quiet no-op", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		transport := &fakeTransport{}
		worker := newWorker(t, store, transport)

		worker.Tick(context.Background())
		assert.Equal(t, 0, transport.sentCount())
	})

	t.Run("processes at most one job per tick", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		transport := &fakeTransport{}
		worker := newWorker(t, store, transport)

		_, err := queue.Enqueue(context.Background(), "a@example.com", "one", "x")
		require.NoError(t, err)
		_, err = queue.Enqueue(context.Background(), "b@example.com", "two", "x")
		require.NoError(t, err)

		worker.Tick(context.Background())
		assert.Equal(t, 1, transport.sentCount())
		worker.Tick(context.Background())
		assert.Equal(t, 2, transport.sentCount())
	})

	t.Run("claims oldest job first", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		transport := &fakeTransport{}
		worker := newWorker(t, store, transport)

		now := time.Now()
		for i, to := range []string{"first@example.com", "second@example.com", "third@example.com"} {
			job := &outbox.Job{
				ID:            mustUUID(t),
				To:            to,
				Subject:       "s",
				Status:        outbox.StatusPending,
				NextAttemptAt: now,
				CreatedAt:     now.Add(time.Duration(i) * time.Second),
			}
			require.NoError(t, store.Create(context.Background(), job))
		}

		worker.Tick(context.Background())
		worker.Tick(context.Background())
		worker.Tick(context.Background())

		transport.mu.Lock()
		defer transport.mu.Unlock()
		require.Len(t, transport.sent, 3)
		assert.Equal(t, "first@example.com", transport.sent[0].To)
		assert.Equal(t, "second@example.com", transport.sent[1].To)
		assert.Equal(t, "third@example.com", transport.sent[2].To)
	})

	t.Run("uses per-job transport override", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		transport := &fakeTransport{}
		worker := newWorker(t, store, transport)

		override := outbox.TransportConfig{Host: "smtp.other.com", Port: 2525}
		_, err := queue.Enqueue(context.Background(), "a@example.com", "s", "x",
			outbox.WithTransportOverride(override))
		require.NoError(t, err)

		worker.Tick(context.Background())

		transport.mu.Lock()
		defer transport.mu.Unlock()
		require.Len(t, transport.confs, 1)
		assert.Equal(t, "smtp.other.com", transport.confs[0].Host)
	})
}

func TestWorker_RetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("failed delivery backs off and eventually fails permanently", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		transport := &fakeTransport{err: errors.New("connection refused")}
		worker := newWorker(t, store, transport)

		id, err := queue.Enqueue(context.Background(), "a@example.com", "s", "x")
		require.NoError(t, err)

		for want := 1; want < outbox.MaxAttempts; want++ {
			worker.Tick(context.Background())

			job, err := store.FindByID(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, outbox.StatusPending, job.Status)
			assert.Equal(t, want, job.Attempts)
			assert.Equal(t, "connection refused", job.LastError)
			assert.WithinDuration(t, time.Now().Add(outbox.RetryBackoff), job.NextAttemptAt, 5*time.Second)

			// Not due yet: the backoff keeps it out of reach.
			worker.Tick(context.Background())
			job, err = store.FindByID(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, want, job.Attempts)

			makeDue(t, store, id)
		}

		worker.Tick(context.Background())
		job, err := store.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, outbox.StatusFailed, job.Status)
		assert.Equal(t, outbox.MaxAttempts, job.Attempts)
	})

	t.Run("failed job is never retried", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		transport := &fakeTransport{err: errors.New("boom")}
		worker := newWorker(t, store, transport)

		id, err := queue.Enqueue(context.Background(), "a@example.com", "s", "x")
		require.NoError(t, err)

		for range outbox.MaxAttempts {
			makeDue(t, store, id)
			worker.Tick(context.Background())
		}
		job, err := store.FindByID(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, outbox.StatusFailed, job.Status)

		makeDue(t, store, id)
		worker.Tick(context.Background())

		after, err := store.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, job.Status, after.Status)
		assert.Equal(t, job.Attempts, after.Attempts)
	})

	t.Run("panicking transport counts as a failed attempt", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		worker := newWorker(t, store, panickingTransport{})

		id, err := queue.Enqueue(context.Background(), "a@example.com", "s", "x")
		require.NoError(t, err)

		worker.Tick(context.Background())

		job, err := store.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, outbox.StatusPending, job.Status)
		assert.Equal(t, 1, job.Attempts)
	})
}

func TestWorker_Polling(t *testing.T) {
	t.Parallel()

	t.Run("overlapping ticks are skipped", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(store)
		transport := &fakeTransport{block: make(chan struct{})}
		w, err := outbox.NewWorker(store, transport, outbox.TransportConfig{},
			outbox.WithLogger(discardLogger()),
			outbox.WithPollInterval(10*time.Millisecond))
		require.NoError(t, err)

		_, err = queue.Enqueue(context.Background(), "a@example.com", "s", "x")
		require.NoError(t, err)
		_, err = queue.Enqueue(context.Background(), "b@example.com", "s", "x")
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))

		// Several intervals pass while the first delivery is stuck;
		// the second job must not be claimed in the meantime.
		time.Sleep(60 * time.Millisecond)
		assert.Equal(t, 0, transport.sentCount())

		close(transport.block)
		require.NoError(t, w.Stop())

		assert.LessOrEqual(t, transport.sentCount(), 2)
		assert.GreaterOrEqual(t, transport.sentCount(), 1)
	})

	t.Run("graceful stop records the aborted attempt", func(t *testing.T) {
		t.Parallel()

		mem := outbox.NewMemoryJobStore()
		queue := outbox.NewQueue(mem)
		transport := &stalledTransport{started: make(chan struct{})}
		w, err := outbox.NewWorker(ctxAwareStore{mem}, transport, outbox.TransportConfig{},
			outbox.WithLogger(discardLogger()),
			outbox.WithPollInterval(10*time.Millisecond))
		require.NoError(t, err)

		id, err := queue.Enqueue(context.Background(), "a@example.com", "s", "x")
		require.NoError(t, err)

		require.NoError(t, w.Start(context.Background()))

		select {
		case <-transport.started:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery never started")
		}
		require.NoError(t, w.Stop())

		// Stop cancels the run context mid-delivery. The claimed job
		// must still be rescheduled rather than stranded in processing.
		job, err := mem.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, outbox.StatusPending, job.Status)
		assert.Equal(t, 1, job.Attempts)
	})

	t.Run("double start is rejected", func(t *testing.T) {
		t.Parallel()

		store := outbox.NewMemoryJobStore()
		w := newWorker(t, store, &fakeTransport{})

		require.NoError(t, w.Start(context.Background()))
		assert.Error(t, w.Start(context.Background()))
		require.NoError(t, w.Stop())
	})
}

func TestMemoryJobStore_RequeueStale(t *testing.T) {
	t.Parallel()

	store := outbox.NewMemoryJobStore()
	queue := outbox.NewQueue(store)

	id, err := queue.Enqueue(context.Background(), "a@example.com", "s", "x")
	require.NoError(t, err)

	claimed, err := store.ClaimNext(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, id, claimed.ID)

	// Too young to be considered stale.
	n, err := store.RequeueStale(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.RequeueStale(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusPending, job.Status)
}

// makeDue rewinds a pending job's next-attempt time into the past.
// Jobs in any other state are left alone.
func makeDue(t *testing.T, store *outbox.MemoryJobStore, id uuid.UUID) {
	t.Helper()
	job, err := store.FindByID(context.Background(), id)
	require.NoError(t, err)
	if job.Status != outbox.StatusPending {
		return
	}
	require.NoError(t, store.Retry(context.Background(), id, job.Attempts, job.LastError, time.Now().Add(-time.Second)))
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	require.NoError(t, err)
	return id
}

// stalledTransport holds every send until its context is cancelled,
// signalling on started once the first delivery begins.
type stalledTransport struct {
	started chan struct{}
	once    sync.Once
}

func (t *stalledTransport) Send(ctx context.Context, cfg outbox.TransportConfig, msg outbox.Message) error {
	t.once.Do(func() { close(t.started) })
	<-ctx.Done()
	return ctx.Err()
}

// ctxAwareStore rejects writes arriving on a cancelled context, the
// way a real database driver would.
type ctxAwareStore struct {
	outbox.JobStore
}

func (s ctxAwareStore) Complete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.JobStore.Complete(ctx, id)
}

func (s ctxAwareStore) Retry(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.JobStore.Retry(ctx, id, attempts, lastError, nextAttemptAt)
}

func (s ctxAwareStore) Fail(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.JobStore.Fail(ctx, id, attempts, lastError)
}

type panickingTransport struct{}

func (panickingTransport) Send(ctx context.Context, cfg outbox.TransportConfig, msg outbox.Message) error {
	panic("transport blew up")
}
