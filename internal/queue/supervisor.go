package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// supervisor paces a worker through backend outages: each consecutive
// failure doubles the wait up to a cap, and repeats of the same error are
// logged at most once per interval.
type supervisor struct {
	logger      *slog.Logger
	base        time.Duration
	maxDelay    time.Duration
	logInterval time.Duration

	mu        sync.Mutex
	failures  int
	lastMsg   string
	sometimes *rate.Sometimes
}

func newSupervisor(logger *slog.Logger, base, maxDelay, logInterval time.Duration) *supervisor {
	return &supervisor{
		logger:      logger,
		base:        base,
		maxDelay:    maxDelay,
		logInterval: logInterval,
	}
}

// failure records a backend error and returns how long to wait before
// talking to the backend again.
func (s *supervisor) failure(ctx context.Context, op string, err error) time.Duration {
	s.mu.Lock()
	s.failures++
	failures := s.failures
	msg := op + ": " + err.Error()
	if msg != s.lastMsg || s.sometimes == nil {
		s.lastMsg = msg
		s.sometimes = &rate.Sometimes{Interval: s.logInterval}
	}
	sometimes := s.sometimes
	s.mu.Unlock()

	delay := Backoff{Base: s.base, Max: s.maxDelay}.Delay(failures)
	sometimes.Do(func() {
		s.logger.ErrorContext(ctx, "queue backend unavailable",
			"operation", op,
			"error", err,
			"consecutive_failures", failures,
			"retry_in_ms", delay.Milliseconds())
	})
	return delay
}

// success clears the failure streak.
func (s *supervisor) success(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.logger.InfoContext(ctx, "queue backend recovered", "after_failures", s.failures)
	}
	s.failures = 0
	s.lastMsg = ""
	s.sometimes = nil
}
