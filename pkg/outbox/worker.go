package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerOption configures the worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	interval time.Duration
	logger   *slog.Logger
}

// WithPollInterval sets the tick interval.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Worker polls the job store and drives jobs through their delivery
// lifecycle. At most one claim-and-process cycle is active at a time:
// a tick that fires while the previous cycle is still in flight is
// skipped entirely.
type Worker struct {
	store     JobStore
	transport Transport
	defaults  TransportConfig
	interval  time.Duration
	logger    *slog.Logger

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWorker creates a worker. defaults is the system-wide transport
// configuration used by jobs without an override.
func NewWorker(store JobStore, transport Transport, defaults TransportConfig, opts ...WorkerOption) (*Worker, error) {
	if store == nil {
		return nil, errors.New("outbox: job store is required")
	}
	if transport == nil {
		return nil, errors.New("outbox: transport is required")
	}

	options := &workerOptions{
		interval: 5 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		store:     store,
		transport: transport,
		defaults:  defaults,
		interval:  options.interval,
		logger:    options.logger,
	}, nil
}

// Start begins polling in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return errors.New("outbox: worker already started")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)

	w.logger.Info("outbox worker started", slog.Duration("interval", w.interval))
	return nil
}

// Stop halts polling and waits for an in-flight delivery to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return errors.New("outbox: worker not started")
	}
	cancel()
	w.wg.Wait()

	w.logger.Info("outbox worker stopped")
	return nil
}

// Run returns a function suitable for errgroup: it starts the worker,
// blocks until the context ends, then stops it.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Previous tick still delivering: skip this one entirely.
			if !w.inFlight.CompareAndSwap(false, true) {
				continue
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer w.inFlight.Store(false)
				w.Tick(ctx)
			}()
		}
	}
}

// Tick claims at most one due job and processes it to a terminal state
// for this attempt. Exposed for tests; production code relies on the
// polling loop.
func (w *Worker) Tick(ctx context.Context) {
	job, err := w.store.ClaimNext(ctx, time.Now())
	if err != nil {
		if !errors.Is(err, ErrNoJobDue) {
			w.logger.Error("failed to claim email job", slog.String("error", err.Error()))
		}
		return
	}

	w.logger.Debug("claimed email job",
		slog.String("job_id", job.ID.String()),
		slog.String("to", job.To),
		slog.Int("attempts", job.Attempts))

	// A graceful stop cancels ctx while a send may still be in flight.
	// The claimed job's outcome must be recorded either way, or it
	// stays stuck in processing; bookkeeping writes therefore run on a
	// cancellation-free context.
	bookCtx := context.WithoutCancel(ctx)

	if err := w.deliver(ctx, job); err != nil {
		w.handleFailure(bookCtx, job, err)
		return
	}

	if err := w.store.Complete(bookCtx, job.ID); err != nil {
		w.logger.Error("failed to mark email job completed",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	w.logger.Info("email delivered",
		slog.String("job_id", job.ID.String()),
		slog.String("to", job.To))
}

func (w *Worker) deliver(ctx context.Context, job *Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in transport: %v", p)
		}
	}()

	cfg := w.defaults
	if job.Transport != nil {
		cfg = *job.Transport
	}

	return w.transport.Send(ctx, cfg, Message{
		To:          job.To,
		Subject:     job.Subject,
		TextBody:    job.TextBody,
		HTMLBody:    job.HTMLBody,
		Attachments: job.Attachments,
	})
}

// handleFailure applies the retry policy: failed attempts are counted,
// and the job returns to pending on a fixed backoff until the attempt
// budget is exhausted, after which it is failed permanently.
func (w *Worker) handleFailure(ctx context.Context, job *Job, deliverErr error) {
	attempts := job.Attempts + 1

	if attempts < MaxAttempts {
		nextAt := time.Now().Add(RetryBackoff)
		if err := w.store.Retry(ctx, job.ID, attempts, deliverErr.Error(), nextAt); err != nil {
			w.logger.Error("failed to reschedule email job",
				slog.String("job_id", job.ID.String()),
				slog.String("error", err.Error()))
			return
		}
		w.logger.Warn("email delivery failed, will retry",
			slog.String("job_id", job.ID.String()),
			slog.Int("attempts", attempts),
			slog.Time("next_attempt_at", nextAt),
			slog.String("error", deliverErr.Error()))
		return
	}

	if err := w.store.Fail(ctx, job.ID, attempts, deliverErr.Error()); err != nil {
		w.logger.Error("failed to mark email job failed",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()))
		return
	}
	w.logger.Error("email delivery failed permanently",
		slog.String("job_id", job.ID.String()),
		slog.Int("attempts", attempts),
		slog.String("error", deliverErr.Error()))
}
