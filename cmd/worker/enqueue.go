package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/spf13/cobra"
)

// enqueueFunc submits one AI job from parsed IDs.
type enqueueFunc func(ctx context.Context, enq *jobs.Enqueuer, a, b uuid.UUID) (*queue.Job, error)

func newEnqueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Submit an AI job by hand",
	}

	var date string
	tasks := enqueueSubcommand("tasks <userId> <goalId>", "Generate a goal's tasks for a day",
		func(ctx context.Context, enq *jobs.Enqueuer, userID, goalID uuid.UUID) (*queue.Job, error) {
			day := domain.StartOfDay(time.Now(), time.UTC)
			if date != "" {
				var err error
				if day, err = domain.ParseDate(date); err != nil {
					return nil, err
				}
			}
			return enq.GenerateDailyTasks(ctx, userID, goalID, day)
		})
	tasks.Flags().StringVar(&date, "date", "", "day to generate tasks for, YYYY-MM-DD (default today, UTC)")

	cmd.AddCommand(
		enqueueSubcommand("plan <userId> <goalId>", "Generate a plan for a goal",
			func(ctx context.Context, enq *jobs.Enqueuer, userID, goalID uuid.UUID) (*queue.Job, error) {
				return enq.GeneratePlan(ctx, userID, goalID)
			}),
		tasks,
		enqueueSubcommand("mentor <userId> <goalId>", "Request mentor feedback on a goal",
			func(ctx context.Context, enq *jobs.Enqueuer, userID, goalID uuid.UUID) (*queue.Job, error) {
				return enq.MentorFeedback(ctx, userID, goalID)
			}),
		enqueueSubcommand("evaluate <userId> <taskInstanceId>", "Evaluate a completed task",
			func(ctx context.Context, enq *jobs.Enqueuer, userID, instanceID uuid.UUID) (*queue.Job, error) {
				return enq.EvaluateTask(ctx, userID, instanceID)
			}),
	)
	return cmd
}

func enqueueSubcommand(use, short string, fn enqueueFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := openQueue(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = q.close() }()

			job, err := fn(cmd.Context(), q.enqueuer, ids[0], ids[1])
			if err != nil {
				return err
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

// parseIDs parses every argument as a UUID.
func parseIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(args))
	for i, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func printJob(w io.Writer, job *queue.Job) {
	fmt.Fprintf(w, "%s\t%s\t%s\tattempt %d/%d\n", job.Queue, job.Name, job.ID, job.Attempt, job.MaxAttempts)
}
