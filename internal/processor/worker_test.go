package processor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/mocks"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAIWorker starts a worker for the ai-jobs queue on a memory backend and
// returns an enqueuer writing to it. The worker stops with the test.
func runAIWorker(t *testing.T, f *fixture) (*jobs.Enqueuer, *queue.MemoryBackend) {
	t.Helper()
	return runAIWorkerOn(t, f, queue.NewMemoryBackend(time.Millisecond, time.Hour))
}

func runAIWorkerOn(t *testing.T, f *fixture, backend *queue.MemoryBackend) (*jobs.Enqueuer, *queue.MemoryBackend) {
	t.Helper()

	defaults := map[string]queue.Defaults{
		jobs.QueueAIJobs: {Attempts: 3, Backoff: queue.Backoff{Base: time.Millisecond, Max: 5 * time.Millisecond}},
	}
	client := queue.NewClient(backend, defaults, discard)

	worker := queue.NewWorker(backend, queue.WorkerConfig{
		Queue:        jobs.QueueAIJobs,
		Concurrency:  1,
		Lease:        time.Minute,
		PollInterval: 2 * time.Millisecond,
		ReapInterval: time.Second,
	}, jobs.AIJobHandler(f.proc), discard, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return jobs.NewEnqueuer(client), backend
}

func TestWorker_PlanThenDailyTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	enq, backend := runAIWorker(t, f)
	ctx := context.Background()

	_, err := enq.GeneratePlan(ctx, f.user.ID, f.goal.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		goal, ok := f.mem.Goal(f.goal.ID)
		return ok && goal.Status == domain.GoalStatusActive
	}, 5*time.Second, 5*time.Millisecond)

	_, err = enq.GenerateDailyTasks(ctx, f.user.ID, f.goal.ID, testDay)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.mem.Instances(f.goal.ID)) == 2
	}, 5*time.Second, 5*time.Millisecond)

	instances := f.mem.Instances(f.goal.ID)
	for _, inst := range instances {
		assert.Equal(t, domain.TaskStatusPending, inst.Status)
		assert.Equal(t, "Every run counts.", inst.DailyMotivation)
	}

	require.Eventually(t, func() bool {
		stats, err := backend.Stats(ctx, jobs.QueueAIJobs)
		return err == nil && stats.Completed == 2
	}, 5*time.Second, 5*time.Millisecond)

	user, _ := f.mem.User(f.user.ID)
	assert.Equal(t, 300, user.AITokensUsedToday)
}

func TestWorker_ProviderFailureIsRetried(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var calls atomic.Int32
	f.planner.GenerateStructuredFn = func(context.Context, string, string, generation.Options) (*generation.Result, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("upstream unavailable")
		}
		return mocks.JSONResult(planJSON), nil
	}
	enq, _ := runAIWorker(t, f)

	_, err := enq.GeneratePlan(context.Background(), f.user.ID, f.goal.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.mem.Plans(f.goal.ID)) == 1
	}, 5*time.Second, 5*time.Millisecond)

	interactions := f.mem.Interactions()
	require.Len(t, interactions, 2)
	byAttempt := map[int]domain.AIInteraction{}
	for _, in := range interactions {
		byAttempt[in.RetryCount+1] = in
	}
	assert.Equal(t, domain.InteractionFailed, byAttempt[1].Status)
	assert.NotEmpty(t, byAttempt[1].ErrorMessage)
	assert.Equal(t, domain.InteractionCompleted, byAttempt[2].Status)
	assert.Equal(t, jobs.PlanKey(f.goal.ID), byAttempt[2].JobKey)

	user, _ := f.mem.User(f.user.ID)
	assert.Equal(t, 150, user.AITokensUsedToday)
}

func TestWorker_PermanentFailureIsDeadLettered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user.AITokenBudget = 10
	f.mem.AddUser(f.user)
	enq, backend := runAIWorker(t, f)
	ctx := context.Background()

	job, err := enq.GeneratePlan(ctx, f.user.ID, f.goal.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		dead, err := backend.DeadLetters(ctx, jobs.QueueAIJobs, 10)
		return err == nil && len(dead) == 1
	}, 5*time.Second, 5*time.Millisecond)

	dead, err := backend.DeadLetters(ctx, jobs.QueueAIJobs, 10)
	require.NoError(t, err)
	assert.Equal(t, job.ID, dead[0].ID)
	assert.Equal(t, 1, dead[0].Attempt)
	assert.Contains(t, dead[0].LastError, ErrBudgetExceeded.Error())
	assert.Zero(t, f.planner.CallCount())
}

func TestWorker_RequeuedDeadLetterRunsAgain(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	var healthy atomic.Bool
	f.planner.GenerateStructuredFn = func(context.Context, string, string, generation.Options) (*generation.Result, error) {
		if !healthy.Load() {
			return nil, errors.New("upstream unavailable")
		}
		return mocks.JSONResult(planJSON), nil
	}
	enq, backend := runAIWorker(t, f)
	ctx := context.Background()

	job, err := enq.GeneratePlan(ctx, f.user.ID, f.goal.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		stats, err := backend.Stats(ctx, jobs.QueueAIJobs)
		return err == nil && stats.Dead == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, 3, f.planner.CallCount())

	healthy.Store(true)
	require.NoError(t, backend.RequeueDead(ctx, jobs.QueueAIJobs, job.ID))
	require.Eventually(t, func() bool {
		return len(f.mem.Plans(f.goal.ID)) == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 4, f.planner.CallCount())
	stats, err := backend.Stats(ctx, jobs.QueueAIJobs)
	require.NoError(t, err)
	assert.Zero(t, stats.Dead)

	var failed, completed int
	for _, in := range f.mem.Interactions() {
		switch in.Status {
		case domain.InteractionFailed:
			failed++
		case domain.InteractionCompleted:
			completed++
			assert.Equal(t, 1, in.Attempt, "the requeued run starts at attempt 1")
		}
	}
	assert.Equal(t, 3, failed)
	assert.Equal(t, 1, completed)
}

func TestWorker_PlanCanBeRegeneratedAfterRetention(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	enq, backend := runAIWorkerOn(t, f, queue.NewMemoryBackend(time.Millisecond, time.Nanosecond))
	ctx := context.Background()

	_, err := enq.GeneratePlan(ctx, f.user.ID, f.goal.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.mem.Plans(f.goal.ID)) == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		stats, err := backend.Stats(ctx, jobs.QueueAIJobs)
		return err == nil && stats.Active == 0 && stats.Waiting == 0
	}, 5*time.Second, 5*time.Millisecond)

	// Same key, but the completed job is no longer retained.
	_, err = enq.GeneratePlan(ctx, f.user.ID, f.goal.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(f.mem.Plans(f.goal.ID)) == 2
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, f.planner.CallCount())
	versions := []int{}
	for _, plan := range f.mem.Plans(f.goal.ID) {
		versions = append(versions, plan.Version)
	}
	assert.ElementsMatch(t, []int{1, 2}, versions)
}
