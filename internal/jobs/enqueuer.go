package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/queue"
)

// Defaults builds the per-queue attempt and backoff defaults from config.
func Defaults(cfg config.QueueConfig) map[string]queue.Defaults {
	settings := map[string]config.QueueSettings{
		QueueAIJobs:        cfg.AIJobs,
		QueueNotifications: cfg.Notifications,
		QueueMaintenance:   cfg.Maintenance,
	}
	out := make(map[string]queue.Defaults, len(settings))
	for name, s := range settings {
		out[name] = queue.Defaults{
			Attempts: s.Attempts,
			Backoff:  queue.Backoff{Base: s.BackoffBase, Max: s.BackoffMax},
		}
	}
	return out
}

// WorkerConfig builds the consumer settings of one queue from config.
func WorkerConfig(cfg config.QueueConfig, name string) queue.WorkerConfig {
	wc := queue.WorkerConfig{
		Queue:        name,
		Lease:        cfg.Lease,
		PollInterval: cfg.PollInterval,
		ReapInterval: cfg.ReapInterval,
		MaxStalls:    cfg.MaxStalls,
	}
	switch name {
	case QueueAIJobs:
		wc.Concurrency = cfg.AIJobs.Concurrency
	case QueueNotifications:
		wc.Concurrency = cfg.Notifications.Concurrency
	case QueueMaintenance:
		wc.Concurrency = cfg.Maintenance.Concurrency
	}
	return wc
}

// Enqueuer submits the worker's jobs with their idempotency keys and
// priorities.
type Enqueuer struct {
	client *queue.Client
	now    func() time.Time
}

// NewEnqueuer creates an Enqueuer on client.
func NewEnqueuer(client *queue.Client) *Enqueuer {
	return &Enqueuer{client: client, now: time.Now}
}

// GeneratePlan enqueues plan generation for a goal.
func (e *Enqueuer) GeneratePlan(ctx context.Context, userID, goalID uuid.UUID) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueAIJobs, JobGeneratePlan,
		GeneratePlan{UserID: userID, GoalID: goalID},
		queue.EnqueueOptions{ID: PlanKey(goalID), Priority: PriorityPlan})
}

// GenerateDailyTasks enqueues task generation for a goal and day.
func (e *Enqueuer) GenerateDailyTasks(ctx context.Context, userID, goalID uuid.UUID, day time.Time) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueAIJobs, JobGenerateDailyTasks,
		GenerateDailyTasks{UserID: userID, GoalID: goalID, Date: domain.FormatDate(day)},
		queue.EnqueueOptions{ID: TasksKey(goalID, day), Priority: PriorityDailyTasks})
}

// MentorFeedback enqueues an on-demand mentor request. Every call is a new
// job.
func (e *Enqueuer) MentorFeedback(ctx context.Context, userID, goalID uuid.UUID) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueAIJobs, JobMentorFeedback,
		MentorFeedback{UserID: userID, GoalID: goalID},
		queue.EnqueueOptions{ID: MentorKey(goalID, e.now()), Priority: PriorityMentor})
}

// WeeklyMentorFeedback enqueues the scheduled mentor feedback for the week
// containing day. Repeats within the same ISO week are no-ops.
func (e *Enqueuer) WeeklyMentorFeedback(ctx context.Context, userID, goalID uuid.UUID, day time.Time) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueAIJobs, JobMentorFeedback,
		MentorFeedback{UserID: userID, GoalID: goalID},
		queue.EnqueueOptions{ID: WeeklyMentorKey(goalID, day), Priority: PriorityMentor})
}

// EvaluateTask enqueues the evaluation of a finished task instance.
func (e *Enqueuer) EvaluateTask(ctx context.Context, userID, taskInstanceID uuid.UUID) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueAIJobs, JobEvaluateTask,
		EvaluateTask{UserID: userID, TaskInstanceID: taskInstanceID},
		queue.EnqueueOptions{ID: EvaluateKey(taskInstanceID), Priority: PriorityEvaluate})
}

// SendNotification enqueues delivery of a persisted notification.
func (e *Enqueuer) SendNotification(ctx context.Context, notificationID uuid.UUID) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueNotifications, JobSend,
		SendNotification{NotificationID: notificationID},
		queue.EnqueueOptions{ID: NotifyKey(notificationID)})
}

// Maintenance enqueues a maintenance job. An empty id gets a random one.
func (e *Enqueuer) Maintenance(ctx context.Context, name, id string, payload any) (*queue.Job, error) {
	return e.client.Enqueue(ctx, QueueMaintenance, name, payload, queue.EnqueueOptions{ID: id})
}
