package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type enqueued struct {
	name    string
	id      string
	payload any
}

type recordingEnqueuer struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
}

func (r *recordingEnqueuer) Maintenance(_ context.Context, name, id string, payload any) (*queue.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.jobs = append(r.jobs, enqueued{name: name, id: id, payload: payload})
	return &queue.Job{ID: id, Queue: jobs.QueueMaintenance, Name: name}, nil
}

func (r *recordingEnqueuer) Jobs() []enqueued {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]enqueued(nil), r.jobs...)
}

func scheduleConfig() config.ScheduleConfig {
	return config.ScheduleConfig{
		Timezone:         "America/New_York",
		ResetTokens:      "0 0 * * *",
		MarkMissed:       "5 0 * * *",
		AggregateStreaks: "10 0 * * *",
		DailyTasks:       "0 6 * * *",
		WeeklyMentor:     "0 9 * * 1",
		Cleanup:          "0 3 * * 0",
		CleanupDaysOld:   45,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*config.ScheduleConfig)
		wantEntries int
		wantErr     string
	}{
		{name: "all triggers", mutate: func(*config.ScheduleConfig) {}, wantEntries: 6},
		{name: "empty expression disables trigger", mutate: func(c *config.ScheduleConfig) { c.Cleanup = "" }, wantEntries: 5},
		{name: "bad expression", mutate: func(c *config.ScheduleConfig) { c.DailyTasks = "every morning" }, wantErr: "daily_tasks"},
		{name: "bad timezone", mutate: func(c *config.ScheduleConfig) { c.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := scheduleConfig()
			tt.mutate(&cfg)
			s, err := New(cfg, &recordingEnqueuer{}, discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEntries, s.Entries())
		})
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(scheduleConfig(), nil, discard)
	assert.Error(t, err)
	_, err = New(scheduleConfig(), &recordingEnqueuer{}, nil)
	assert.Error(t, err)
}

func TestFire_TargetsLocalDay(t *testing.T) {
	t.Parallel()

	enq := &recordingEnqueuer{}
	s, err := New(scheduleConfig(), enq, discard)
	require.NoError(t, err)

	// 04:05 UTC is 00:05 in New York.
	at := time.Date(2026, 3, 11, 4, 5, 0, 0, time.UTC)
	out, err := s.Fire(context.Background(), TriggerMarkMissed, at)
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := enq.Jobs()
	require.Len(t, got, 1)
	assert.Equal(t, jobs.JobMarkMissedTasks, got[0].name)
	assert.Equal(t, jobs.MaintenanceKey(jobs.JobMarkMissedTasks, at), got[0].id)
	assert.Equal(t, jobs.Maintenance{Date: "2026-03-11"}, got[0].payload)
}

func TestFire_DateFollowsTimezone(t *testing.T) {
	t.Parallel()

	enq := &recordingEnqueuer{}
	s, err := New(scheduleConfig(), enq, discard)
	require.NoError(t, err)

	// 02:00 UTC on the 11th is 22:00 on the 10th in New York.
	_, err = s.Fire(context.Background(), TriggerResetTokens, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, jobs.Maintenance{Date: "2026-03-10"}, enq.Jobs()[0].payload)
}

func TestFire_CleanupEnqueuesEveryType(t *testing.T) {
	t.Parallel()

	enq := &recordingEnqueuer{}
	s, err := New(scheduleConfig(), enq, discard)
	require.NoError(t, err)

	out, err := s.Fire(context.Background(), TriggerCleanup, time.Date(2026, 3, 15, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, out, 2)

	got := enq.Jobs()
	require.Len(t, got, 2)
	assert.Equal(t, jobs.CleanupOldData{Type: jobs.CleanupInteractions, DaysOld: 45}, got[0].payload)
	assert.Equal(t, jobs.CleanupOldData{Type: jobs.CleanupNotifications, DaysOld: 45}, got[1].payload)
	assert.NotEqual(t, got[0].id, got[1].id)
}

func TestFire_Errors(t *testing.T) {
	t.Parallel()

	s, err := New(scheduleConfig(), &recordingEnqueuer{}, discard)
	require.NoError(t, err)
	_, err = s.Fire(context.Background(), "defragment", time.Now())
	assert.ErrorIs(t, err, ErrUnknownTrigger)

	failing := &recordingEnqueuer{err: errors.New("redis down")}
	s, err = New(scheduleConfig(), failing, discard)
	require.NoError(t, err)
	_, err = s.Fire(context.Background(), TriggerDailyTasks, time.Now())
	assert.ErrorContains(t, err, "redis down")
}

func TestFire_SameMinuteEnqueuesOnce(t *testing.T) {
	t.Parallel()

	backend := queue.NewMemoryBackend(time.Second, time.Hour)
	enq := jobs.NewEnqueuer(queue.NewClient(backend, nil, discard))
	s, err := New(scheduleConfig(), enq, discard)
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2026, 3, 11, 11, 0, 0, 0, time.UTC)
	first, err := s.Fire(ctx, TriggerDailyTasks, at)
	require.NoError(t, err)
	second, err := s.Fire(ctx, TriggerDailyTasks, at.Add(20*time.Second))
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)

	stats, err := backend.Stats(ctx, jobs.QueueMaintenance)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Waiting)
}

func TestRun_StopsWithContext(t *testing.T) {
	t.Parallel()

	s, err := New(scheduleConfig(), &recordingEnqueuer{}, discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestTriggersMatchConfig(t *testing.T) {
	t.Parallel()

	keys := make([]string, 0)
	for k := range scheduleConfig().Expressions() {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, keys, Triggers())
}
