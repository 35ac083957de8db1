package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type finished struct {
	job     Job
	outcome Outcome
	err     error
}

type recorder struct {
	mu     sync.Mutex
	events []finished
}

func (r *recorder) JobFinished(_ context.Context, job *Job, outcome Outcome, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, finished{job: *job, outcome: outcome, err: err})
}

func (r *recorder) snapshot() []finished {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]finished(nil), r.events...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Queue:        "q",
		Concurrency:  2,
		Lease:        time.Minute,
		PollInterval: 5 * time.Millisecond,
		ReapInterval: 10 * time.Millisecond,
	}
}

// startWorker runs w until the returned stop function is called.
func startWorker(t *testing.T, w *Worker) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func enqueue(t *testing.T, b Backend, id string, attempts int) {
	t.Helper()
	job := &Job{ID: id, Queue: "q", Name: "work", Payload: []byte(`{"n":1}`), MaxAttempts: attempts}
	_, _, err := b.Enqueue(context.Background(), job, time.Now())
	require.NoError(t, err)
}

func TestWorker_Outcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		attempts     int
		handler      func(calls int) error
		wantOutcomes []Outcome
		wantStats    Stats
	}{
		{
			name:         "success",
			attempts:     3,
			handler:      func(int) error { return nil },
			wantOutcomes: []Outcome{OutcomeCompleted},
			wantStats:    Stats{Completed: 1},
		},
		{
			name:     "retried then succeeds",
			attempts: 3,
			handler: func(calls int) error {
				if calls < 2 {
					return errors.New("flaky")
				}
				return nil
			},
			wantOutcomes: []Outcome{OutcomeRetried, OutcomeCompleted},
			wantStats:    Stats{Completed: 1},
		},
		{
			name:         "exhausted",
			attempts:     2,
			handler:      func(int) error { return errors.New("always") },
			wantOutcomes: []Outcome{OutcomeRetried, OutcomeDeadLetter},
			wantStats:    Stats{Dead: 1},
		},
		{
			name:         "permanent",
			attempts:     5,
			handler:      func(int) error { return Permanent(errors.New("goal not found")) },
			wantOutcomes: []Outcome{OutcomeDeadLetter},
			wantStats:    Stats{Dead: 1},
		},
		{
			name:         "panic",
			attempts:     1,
			handler:      func(int) error { panic("boom") },
			wantOutcomes: []Outcome{OutcomeDeadLetter},
			wantStats:    Stats{Dead: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := NewMemoryBackend(0, time.Hour)
			rec := &recorder{}
			var calls atomic.Int32
			handler := func(_ context.Context, _ *Job) error {
				return tt.handler(int(calls.Add(1)))
			}

			w := NewWorker(backend, testWorkerConfig(), handler, discard, rec)
			stop := startWorker(t, w)
			enqueue(t, backend, "job-1", tt.attempts)

			require.Eventually(t, func() bool {
				return rec.count() == len(tt.wantOutcomes)
			}, 2*time.Second, 5*time.Millisecond)
			stop()

			events := rec.snapshot()
			require.Len(t, events, len(tt.wantOutcomes))
			for i, ev := range events {
				assert.Equal(t, tt.wantOutcomes[i], ev.outcome, "delivery %d", i)
				assert.Equal(t, i+1, ev.job.Attempt, "attempt seen by observer")
			}

			stats, err := backend.Stats(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStats, stats)
		})
	}
}

func TestWorker_DeadLetterKeepsFailure(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend(0, time.Hour)
	handler := func(context.Context, *Job) error {
		return Permanent(errors.New("payload rejected"))
	}

	rec := &recorder{}
	stop := startWorker(t, NewWorker(backend, testWorkerConfig(), handler, discard, rec))
	enqueue(t, backend, "job-1", 3)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	dead, err := backend.DeadLetters(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "payload rejected", dead[0].LastError)
	assert.NotNil(t, dead[0].FailedAt)
	assert.JSONEq(t, `{"n":1}`, string(dead[0].Payload))
}

func TestWorker_HandlerContext(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend(0, time.Hour)
	seen := make(chan *slog.Logger, 1)
	handler := func(ctx context.Context, _ *Job) error {
		seen <- logger.FromContextOrDefault(ctx, nil)
		return nil
	}

	stop := startWorker(t, NewWorker(backend, testWorkerConfig(), handler, discard, nil))
	defer stop()
	enqueue(t, backend, "job-1", 1)

	select {
	case l := <-seen:
		assert.NotNil(t, l, "handler gets a job-scoped logger")
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestWorker_ShutdownWaitsForInFlightJobs(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend(0, time.Hour)
	started := make(chan struct{})
	release := make(chan struct{})
	var cancelled atomic.Bool

	handler := func(ctx context.Context, _ *Job) error {
		close(started)
		<-release
		cancelled.Store(ctx.Err() != nil)
		return nil
	}

	w := NewWorker(backend, testWorkerConfig(), handler, discard, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	enqueue(t, backend, "slow", 1)
	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.False(t, cancelled.Load(), "handler context is not cancelled by shutdown")
	stats, err := backend.Stats(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestWorker_ReapsExpiredLeases(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend(0, time.Hour)
	enqueue(t, backend, "orphan", 3)

	// Simulate a crashed worker holding the lease.
	orphan, err := backend.Reserve(context.Background(), "q", time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, orphan)

	rec := &recorder{}
	handler := func(context.Context, *Job) error { return nil }
	stop := startWorker(t, NewWorker(backend, testWorkerConfig(), handler, discard, rec))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	events := rec.snapshot()
	assert.Equal(t, "orphan", events[0].job.ID)
	assert.Equal(t, 1, events[0].job.Attempt)
}

func TestWorker_DeadLettersJobsThatKeepStalling(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend(0, time.Hour)
	enqueue(t, backend, "hangs", 5)

	release := make(chan struct{})
	var started atomic.Int32
	handler := func(context.Context, *Job) error {
		started.Add(1)
		<-release
		return nil
	}

	cfg := testWorkerConfig()
	cfg.Concurrency = 3
	cfg.Lease = 5 * time.Millisecond
	cfg.ReapInterval = 5 * time.Millisecond
	cfg.MaxStalls = 1

	rec := &recorder{}
	stop := startWorker(t, NewWorker(backend, cfg, handler, discard, rec))
	require.Eventually(t, func() bool {
		stats, err := backend.Stats(context.Background(), "q")
		return err == nil && stats.Dead == 1
	}, 2*time.Second, 5*time.Millisecond)
	close(release)
	stop()

	assert.Equal(t, int32(2), started.Load(), "one delivery plus one redelivery")

	var stalled *finished
	for _, ev := range rec.snapshot() {
		if ev.outcome == OutcomeDeadLetter {
			stalled = &ev
		}
	}
	require.NotNil(t, stalled)
	assert.ErrorIs(t, stalled.err, ErrStalled)
	assert.Equal(t, 2, stalled.job.Stalls)

	dead, err := backend.DeadLetters(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].LastError, "lease expired 2 times")
}

type failingBackend struct {
	*MemoryBackend
	failures atomic.Int32
}

func (f *failingBackend) Reserve(ctx context.Context, queue string, lease time.Duration) (*Job, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return f.MemoryBackend.Reserve(ctx, queue, lease)
}

func TestWorker_SurvivesBackendOutage(t *testing.T) {
	t.Parallel()

	backend := &failingBackend{MemoryBackend: NewMemoryBackend(0, time.Hour)}
	backend.failures.Store(3)
	enqueue(t, backend, "job-1", 1)

	rec := &recorder{}
	cfg := testWorkerConfig()
	cfg.Concurrency = 1
	cfg.PollInterval = time.Millisecond
	stop := startWorker(t, NewWorker(backend, cfg, func(context.Context, *Job) error { return nil }, discard, rec))
	require.Eventually(t, func() bool { return rec.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, OutcomeCompleted, rec.snapshot()[0].outcome)
}

func TestNewWorker_Defaults(t *testing.T) {
	t.Parallel()

	w := NewWorker(NewMemoryBackend(0, time.Hour), WorkerConfig{Queue: "q", Concurrency: -1}, nil, discard, nil)
	want := DefaultWorkerConfig("q")
	assert.Equal(t, want, w.config)
}
