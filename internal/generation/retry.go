package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// RetryPolicy bounds how a provider retries transient failures inside a
// single job attempt. The job queue adds its own, slower backoff on top.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// WithRetry calls fn until it succeeds, fails with an error that does not
// wrap ErrTransientFailure, or runs out of retries. Delays grow as
// base * 2^attempt with 50-100% jitter.
func WithRetry[T any](ctx context.Context, logger *slog.Logger, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if !errors.Is(err, ErrTransientFailure) {
			return zero, err
		}

		if attempt >= maxRetries {
			logger.WarnContext(ctx, "maximum retry attempts reached",
				"max_retries", maxRetries,
				"error", err)
			return zero, err
		}

		backoff := float64(base) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))

		logger.InfoContext(ctx, "retrying after delay",
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w: %v", ErrTransientFailure, ctx.Err())
		}
	}
}

// ClassifyStatus maps an HTTP status from a provider API to a generation
// error. Rate limits, timeouts and server errors are transient; everything
// else fails the attempt.
func ClassifyStatus(code int, body string) error {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransientFailure, code, body)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials (status %d)", ErrGenerationFailed, code)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrGenerationFailed, code, body)
	}
}
