package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/goalforge/internal/queue"
)

// ErrUnknownJob is returned for a job name outside a queue's closed set.
var ErrUnknownJob = errors.New("unknown job")

// AIJobVisitor handles every ai-jobs job.
type AIJobVisitor interface {
	GeneratePlan(ctx context.Context, job *queue.Job, p GeneratePlan) error
	GenerateDailyTasks(ctx context.Context, job *queue.Job, p GenerateDailyTasks) error
	MentorFeedback(ctx context.Context, job *queue.Job, p MentorFeedback) error
	EvaluateTask(ctx context.Context, job *queue.Job, p EvaluateTask) error
}

// MaintenanceVisitor handles every maintenance job.
type MaintenanceVisitor interface {
	ResetDailyTokens(ctx context.Context, p Maintenance) error
	MarkMissedTasks(ctx context.Context, p Maintenance) error
	AggregateStreaks(ctx context.Context, p Maintenance) error
	GenerateDailyTasksForAll(ctx context.Context, p Maintenance) error
	GenerateWeeklyMentorFeedback(ctx context.Context, p Maintenance) error
	CleanupOldData(ctx context.Context, p CleanupOldData) error
}

// NotificationVisitor handles every notifications job.
type NotificationVisitor interface {
	Send(ctx context.Context, p SendNotification) error
}

type validator interface {
	Validate() error
}

// decode unmarshals and validates a payload. Both failures are permanent.
func decode[P validator](job *queue.Job) (P, error) {
	var p P
	if err := job.DecodePayload(&p); err != nil {
		return p, queue.Permanent(err)
	}
	if err := p.Validate(); err != nil {
		return p, queue.Permanent(fmt.Errorf("invalid %s payload: %w", job.Name, err))
	}
	return p, nil
}

func unknown(job *queue.Job) error {
	return queue.Permanent(fmt.Errorf("%w: %s on %s", ErrUnknownJob, job.Name, job.Queue))
}

// AIJobHandler returns a queue.Handler dispatching ai-jobs to v.
func AIJobHandler(v AIJobVisitor) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		switch job.Name {
		case JobGeneratePlan:
			p, err := decode[GeneratePlan](job)
			if err != nil {
				return err
			}
			return v.GeneratePlan(ctx, job, p)
		case JobGenerateDailyTasks:
			p, err := decode[GenerateDailyTasks](job)
			if err != nil {
				return err
			}
			return v.GenerateDailyTasks(ctx, job, p)
		case JobMentorFeedback:
			p, err := decode[MentorFeedback](job)
			if err != nil {
				return err
			}
			return v.MentorFeedback(ctx, job, p)
		case JobEvaluateTask:
			p, err := decode[EvaluateTask](job)
			if err != nil {
				return err
			}
			return v.EvaluateTask(ctx, job, p)
		}
		return unknown(job)
	}
}

// MaintenanceHandler returns a queue.Handler dispatching maintenance jobs
// to v.
func MaintenanceHandler(v MaintenanceVisitor) queue.Handler {
	dated := map[string]func(context.Context, Maintenance) error{
		JobResetDailyTokens:             v.ResetDailyTokens,
		JobMarkMissedTasks:              v.MarkMissedTasks,
		JobAggregateStreaks:             v.AggregateStreaks,
		JobGenerateDailyTasksForAll:     v.GenerateDailyTasksForAll,
		JobGenerateWeeklyMentorFeedback: v.GenerateWeeklyMentorFeedback,
	}

	return func(ctx context.Context, job *queue.Job) error {
		if job.Name == JobCleanupOldData {
			p, err := decode[CleanupOldData](job)
			if err != nil {
				return err
			}
			return v.CleanupOldData(ctx, p)
		}

		run, ok := dated[job.Name]
		if !ok {
			return unknown(job)
		}
		p, err := decode[Maintenance](job)
		if err != nil {
			return err
		}
		return run(ctx, p)
	}
}

// NotificationHandler returns a queue.Handler dispatching notification jobs
// to v.
func NotificationHandler(v NotificationVisitor) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		if job.Name != JobSend {
			return unknown(job)
		}
		p, err := decode[SendNotification](job)
		if err != nil {
			return err
		}
		return v.Send(ctx, p)
	}
}
