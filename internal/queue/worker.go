package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/redact"
)

// Handler processes one job. Returning nil completes it; an error wrapped
// with Permanent dead-letters it; any other error schedules a retry while
// attempts remain.
type Handler func(ctx context.Context, job *Job) error

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Queue        string
	Concurrency  int
	Lease        time.Duration
	PollInterval time.Duration
	ReapInterval time.Duration
	// MaxStalls is how many expired leases a job may have before the
	// reaper dead-letters it. Zero means DefaultMaxStalls.
	MaxStalls int
}

// DefaultWorkerConfig returns a WorkerConfig with reasonable defaults.
func DefaultWorkerConfig(queue string) WorkerConfig {
	return WorkerConfig{
		Queue:        queue,
		Concurrency:  1,
		Lease:        5 * time.Minute,
		PollInterval: time.Second,
		ReapInterval: 30 * time.Second,
		MaxStalls:    DefaultMaxStalls,
	}
}

// Worker consumes one queue with a fixed number of goroutines.
type Worker struct {
	backend  Backend
	handler  Handler
	config   WorkerConfig
	logger   *slog.Logger
	observer Observer
	sup      *supervisor
	now      func() time.Time
}

// NewWorker creates a worker. observer may be nil.
func NewWorker(backend Backend, config WorkerConfig, handler Handler, logger *slog.Logger, observer Observer) *Worker {
	defaults := DefaultWorkerConfig(config.Queue)
	if config.Concurrency <= 0 {
		logger.Warn("invalid concurrency specified, using default",
			"queue", config.Queue,
			"specified", config.Concurrency,
			"default", defaults.Concurrency)
		config.Concurrency = defaults.Concurrency
	}
	if config.Lease <= 0 {
		config.Lease = defaults.Lease
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = defaults.ReapInterval
	}
	if config.MaxStalls <= 0 {
		config.MaxStalls = defaults.MaxStalls
	}
	if observer == nil {
		observer = Observers(nil)
	}

	l := logger.With("component", "queue_worker", "queue", config.Queue)
	return &Worker{
		backend:  backend,
		handler:  handler,
		config:   config,
		logger:   l,
		observer: observer,
		sup:      newSupervisor(l, config.PollInterval, time.Minute, time.Minute),
		now:      time.Now,
	}
}

// Run consumes jobs until ctx is cancelled, then waits for in-flight jobs to
// finish. Handlers run on a context that is not cancelled with ctx, so a job
// that has started always runs to completion.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "starting queue worker", "concurrency", w.config.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reap(ctx)
	}()

	wg.Wait()
	w.logger.Info("queue worker stopped")
	return nil
}

func (w *Worker) consume(ctx context.Context, id int) {
	w.logger.DebugContext(ctx, "starting consumer", "consumer_id", id)

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.backend.Reserve(ctx, w.config.Queue, w.config.Lease)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sleep(ctx, w.sup.failure(ctx, "reserve", err))
			continue
		}
		w.sup.success(ctx)

		if job == nil {
			sleep(ctx, w.config.PollInterval)
			continue
		}

		w.process(context.WithoutCancel(ctx), job, id)
	}
}

// process runs one job and settles it with the backend.
func (w *Worker) process(ctx context.Context, job *Job, consumerID int) {
	jobLogger := w.logger.With(
		"job_id", job.ID,
		"job_name", job.Name,
		"attempt", job.Attempt,
		"consumer_id", consumerID,
	)
	ctx = logger.WithLogger(ctx, jobLogger)

	jobLogger.DebugContext(ctx, "processing job")

	start := w.now()
	err := w.run(ctx, job)
	elapsed := w.now().Sub(start)
	delivered := *job

	var outcome Outcome
	var settleErr error
	switch {
	case err == nil:
		outcome = OutcomeCompleted
		settleErr = w.backend.Ack(ctx, job)
		jobLogger.InfoContext(ctx, "job completed", "duration_ms", elapsed.Milliseconds())

	case IsPermanent(err) || job.Exhausted():
		outcome = OutcomeDeadLetter
		failedAt := w.now().UTC()
		job.LastError = redact.Error(err)
		job.FailedAt = &failedAt
		settleErr = w.backend.DeadLetter(ctx, job)
		jobLogger.ErrorContext(ctx, "job moved to dead-letter set",
			"error", err,
			"permanent", IsPermanent(err),
			"max_attempts", job.MaxAttempts)

	default:
		outcome = OutcomeRetried
		delay := job.Backoff.Delay(job.Attempt)
		job.LastError = redact.Error(err)
		job.Attempt++
		settleErr = w.backend.Retry(ctx, job, w.now().Add(delay))
		jobLogger.WarnContext(ctx, "job failed, will retry",
			"error", err,
			"retry_in_ms", delay.Milliseconds(),
			"next_attempt", job.Attempt)
	}

	if settleErr != nil {
		if errors.Is(settleErr, ErrLeaseLost) {
			jobLogger.WarnContext(ctx, "lease expired before the job was settled", "outcome", outcome)
		} else {
			jobLogger.ErrorContext(ctx, "failed to settle job", "outcome", outcome, "error", settleErr)
		}
	}

	w.observer.JobFinished(ctx, &delivered, outcome, err, elapsed)
}

// run calls the handler, turning a panic into an error.
func (w *Worker) run(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContextOrDefault(ctx, w.logger).ErrorContext(ctx, "job handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

func (w *Worker) reap(ctx context.Context) {
	ticker := time.NewTicker(w.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reapOnce(ctx)
		}
	}
}

// reapOnce runs one reaper pass. Jobs dead-lettered for stalling are
// reported to the observer like any other dead letter.
func (w *Worker) reapOnce(ctx context.Context) {
	r, err := w.backend.ReapExpired(ctx, w.config.Queue, w.config.MaxStalls)
	if err != nil {
		if ctx.Err() == nil {
			w.sup.failure(ctx, "reap", err)
		}
		return
	}
	if r.Requeued > 0 {
		w.logger.WarnContext(ctx, "requeued jobs with expired leases", "count", r.Requeued)
	}
	for i := range r.Stalled {
		job := &r.Stalled[i]
		w.logger.ErrorContext(ctx, "job moved to dead-letter set after stalling",
			"job_id", job.ID,
			"job_name", job.Name,
			"stalls", job.Stalls,
			"max_stalls", w.config.MaxStalls)
		w.observer.JobFinished(ctx, job, OutcomeDeadLetter, fmt.Errorf("%w: lease expired %d times", ErrStalled, job.Stalls), 0)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
