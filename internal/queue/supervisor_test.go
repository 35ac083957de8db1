package queue

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSupervisor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	s := newSupervisor(l, 10*time.Millisecond, 50*time.Millisecond, time.Hour)
	ctx := context.Background()
	errDown := errors.New("connection refused")

	assert.Equal(t, 10*time.Millisecond, s.failure(ctx, "reserve", errDown))
	assert.Equal(t, 20*time.Millisecond, s.failure(ctx, "reserve", errDown))
	assert.Equal(t, 40*time.Millisecond, s.failure(ctx, "reserve", errDown))
	assert.Equal(t, 50*time.Millisecond, s.failure(ctx, "reserve", errDown))

	assert.Equal(t, 1, strings.Count(buf.String(), "queue backend unavailable"),
		"repeats of the same error are rate limited")

	s.failure(ctx, "reserve", errors.New("auth failed"))
	assert.Equal(t, 2, strings.Count(buf.String(), "queue backend unavailable"),
		"a new error is logged right away")

	s.success(ctx)
	assert.Contains(t, buf.String(), "queue backend recovered")
	assert.Equal(t, 10*time.Millisecond, s.failure(ctx, "reserve", errDown), "streak resets")
}
