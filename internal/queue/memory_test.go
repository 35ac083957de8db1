package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testJob(id string) *Job {
	return &Job{ID: id, Queue: "q", Name: "work", Payload: []byte(`{}`), MaxAttempts: 3, Attempt: 1}
}

func TestMemoryBackend_EnqueueIsIdempotent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewMemoryBackend(time.Second, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	first, created, err := b.Enqueue(ctx, testJob("plan-1"), clock.Now())
	require.NoError(t, err)
	assert.True(t, created)

	dup := testJob("plan-1")
	dup.Priority = 9
	second, created, err := b.Enqueue(ctx, dup, clock.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Priority, second.Priority)

	// Still blocked while running and after completion within retention.
	job, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	_, created, _ = b.Enqueue(ctx, testJob("plan-1"), clock.Now())
	assert.False(t, created)
	require.NoError(t, b.Ack(ctx, job))
	_, created, _ = b.Enqueue(ctx, testJob("plan-1"), clock.Now())
	assert.False(t, created)

	// Retention over: the key is free again.
	clock.Advance(2 * time.Hour)
	_, created, err = b.Enqueue(ctx, testJob("plan-1"), clock.Now())
	require.NoError(t, err)
	assert.True(t, created)

	stats, err := b.Stats(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)
}

func TestMemoryBackend_PriorityAgesInsteadOfStarving(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewMemoryBackend(time.Second, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	low := testJob("low")
	low.Priority = 5
	_, _, err := b.Enqueue(ctx, low, clock.Now())
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, _, err = b.Enqueue(ctx, testJob("urgent"), clock.Now())
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, _, err = b.Enqueue(ctx, testJob("late"), clock.Now())
	require.NoError(t, err)

	var order []string
	for {
		job, err := b.Reserve(ctx, "q", time.Minute)
		require.NoError(t, err)
		if job == nil {
			break
		}
		order = append(order, job.ID)
	}

	// low scores t0+5s, urgent t0+2s, late t0+12s.
	assert.Equal(t, []string{"urgent", "low", "late"}, order)
}

func TestMemoryBackend_DelayedJobsWait(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewMemoryBackend(0, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	_, _, err := b.Enqueue(ctx, testJob("later"), clock.Now().Add(time.Minute))
	require.NoError(t, err)

	job, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, job)

	stats, _ := b.Stats(ctx, "q")
	assert.Equal(t, int64(1), stats.Delayed)

	clock.Advance(time.Minute)
	job, err = b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "later", job.ID)
}

func TestMemoryBackend_ExpiredLeaseIsRedelivered(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewMemoryBackend(0, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	_, _, err := b.Enqueue(ctx, testJob("crashy"), clock.Now())
	require.NoError(t, err)

	first, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	r, err := b.ReapExpired(ctx, "q", 1)
	require.NoError(t, err)
	assert.Zero(t, r.Requeued, "lease still valid")

	clock.Advance(2 * time.Minute)
	r, err = b.ReapExpired(ctx, "q", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Requeued)

	second, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.Attempt, second.Attempt, "redelivery keeps the attempt")
	assert.Equal(t, first.Run, second.Run, "redelivery keeps the run")
	assert.Equal(t, 1, second.Stalls)
	assert.NotEqual(t, first.LeaseToken, second.LeaseToken)

	assert.ErrorIs(t, b.Ack(ctx, first), ErrLeaseLost)
	assert.NoError(t, b.Ack(ctx, second))
}

func TestMemoryBackend_DeadLetters(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewMemoryBackend(0, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, _, err := b.Enqueue(ctx, testJob(id), clock.Now())
		require.NoError(t, err)
		job, err := b.Reserve(ctx, "q", time.Minute)
		require.NoError(t, err)
		job.LastError = "boom " + id
		require.NoError(t, b.DeadLetter(ctx, job))
		clock.Advance(time.Second)
	}

	dead, err := b.DeadLetters(ctx, "q", 10)
	require.NoError(t, err)
	require.Len(t, dead, 2)
	assert.Equal(t, "b", dead[0].ID)
	assert.Equal(t, "boom b", dead[0].LastError)

	// Dead jobs never come back on their own.
	clock.Advance(time.Hour)
	_, _ = b.ReapExpired(ctx, "q", 1)
	job, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, job)

	require.NoError(t, b.RequeueDead(ctx, "q", "a"))
	assert.ErrorIs(t, b.RequeueDead(ctx, "q", "missing"), ErrJobNotFound)

	job, err = b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "a", job.ID)
	assert.Equal(t, 1, job.Attempt)

	// A dead key does not block a fresh enqueue.
	_, created, err := b.Enqueue(ctx, testJob("b"), clock.Now())
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMemoryBackend_QueuesAreIsolated(t *testing.T) {
	t.Parallel()

	b := NewMemoryBackend(0, time.Hour)
	ctx := context.Background()

	other := testJob("x")
	other.Queue = "other"
	_, _, err := b.Enqueue(ctx, other, time.Now())
	require.NoError(t, err)

	job, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, job)

	_, created, err := b.Enqueue(ctx, testJob("x"), time.Now())
	require.NoError(t, err)
	assert.True(t, created, "same id on another queue is a different job")
}

func TestMemoryBackend_StallBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		maxStalls int
		wantDead  bool
	}{
		{name: "within bound is requeued", maxStalls: 2},
		{name: "over bound is dead-lettered", maxStalls: 1, wantDead: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			b := NewMemoryBackend(0, time.Hour, WithClock(clock.Now))
			ctx := context.Background()

			_, _, err := b.Enqueue(ctx, testJob("hangs"), clock.Now())
			require.NoError(t, err)

			var last Reaped
			for i := 0; i < 2; i++ {
				job, err := b.Reserve(ctx, "q", time.Minute)
				require.NoError(t, err)
				require.NotNil(t, job)
				clock.Advance(2 * time.Minute)
				last, err = b.ReapExpired(ctx, "q", tt.maxStalls)
				require.NoError(t, err)
			}

			stats, err := b.Stats(ctx, "q")
			require.NoError(t, err)
			if !tt.wantDead {
				assert.Equal(t, 1, last.Requeued)
				assert.Equal(t, int64(1), stats.Waiting)
				return
			}
			require.Len(t, last.Stalled, 1)
			assert.Equal(t, 2, last.Stalled[0].Stalls)
			assert.Contains(t, last.Stalled[0].LastError, ErrStalled.Error())
			assert.Equal(t, int64(1), stats.Dead)
		})
	}
}

func TestMemoryBackend_RunChangesOnlyWhenStartedOver(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := NewMemoryBackend(0, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	enqueued, _, err := b.Enqueue(ctx, testJob("j"), clock.Now())
	require.NoError(t, err)
	require.NotEmpty(t, enqueued.Run)

	job, err := b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	job.Attempt++
	require.NoError(t, b.Retry(ctx, job, clock.Now()))

	job, err = b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, enqueued.Run, job.Run, "retries keep the run")
	require.NoError(t, b.DeadLetter(ctx, job))

	require.NoError(t, b.RequeueDead(ctx, "q", "j"))
	job, err = b.Reserve(ctx, "q", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, enqueued.Run, job.Run)
	assert.Equal(t, 1, job.Attempt)
	require.NoError(t, b.DeadLetter(ctx, job))

	replaced, created, err := b.Enqueue(ctx, testJob("j"), clock.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, job.Run, replaced.Run)
}
