package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWithRetry_RetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := WithRetry(context.Background(), discard, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", fmt.Errorf("%w: busy", ErrTransientFailure)
			}
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_StopsOnPermanent(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := WithRetry(context.Background(), discard, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("%w: blocked", ErrContentBlocked)
		})
	assert.ErrorIs(t, err, ErrContentBlocked)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUp(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := WithRetry(context.Background(), discard, RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
		func(ctx context.Context) (int, error) {
			calls++
			return 0, fmt.Errorf("%w: still busy", ErrTransientFailure)
		})
	assert.ErrorIs(t, err, ErrTransientFailure)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(ctx, discard, RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour},
		func(ctx context.Context) (int, error) {
			return 0, fmt.Errorf("%w: busy", ErrTransientFailure)
		})
	assert.ErrorIs(t, err, ErrTransientFailure)
	assert.Contains(t, err.Error(), context.Canceled.Error())
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.Is(ClassifyStatus(http.StatusTooManyRequests, ""), ErrTransientFailure))
	assert.True(t, errors.Is(ClassifyStatus(http.StatusBadGateway, ""), ErrTransientFailure))
	assert.True(t, errors.Is(ClassifyStatus(http.StatusUnauthorized, ""), ErrGenerationFailed))
	assert.True(t, errors.Is(ClassifyStatus(http.StatusBadRequest, "bad"), ErrGenerationFailed))
}
