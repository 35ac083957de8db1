package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	// streakThreshold is the completion percentage a user must reach on a
	// day to keep their streak.
	streakThreshold = 80

	activityWindowDays = 7

	// fanOutLimit bounds concurrent enqueues of the bulk jobs.
	fanOutLimit = 8
)

// AIJobEnqueuer submits the generation jobs the bulk maintenance jobs fan
// out to.
type AIJobEnqueuer interface {
	GenerateDailyTasks(ctx context.Context, userID, goalID uuid.UUID, day time.Time) (*queue.Job, error)
	WeeklyMentorFeedback(ctx context.Context, userID, goalID uuid.UUID, day time.Time) (*queue.Job, error)
}

// Maintenance handles the maintenance queue. Every job is safe to run more
// than once for the same day.
type Maintenance struct {
	stores   store.Stores
	enqueuer AIJobEnqueuer
	logger   *slog.Logger
	now      func() time.Time
}

var _ jobs.MaintenanceVisitor = (*Maintenance)(nil)

// NewMaintenance creates the maintenance processor.
func NewMaintenance(stores store.Stores, enqueuer AIJobEnqueuer, logger *slog.Logger) (*Maintenance, error) {
	if enqueuer == nil {
		return nil, errors.New("enqueuer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Maintenance{
		stores:   stores,
		enqueuer: enqueuer,
		logger:   logger.With("component", "maintenance"),
		now:      time.Now,
	}, nil
}

func (m *Maintenance) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, m.logger)
}

func (m *Maintenance) day(p jobs.Maintenance) (time.Time, error) {
	day, err := p.Day(m.now())
	if err != nil {
		return time.Time{}, queue.Permanent(err)
	}
	return day, nil
}

// ResetDailyTokens zeroes stale token counters.
func (m *Maintenance) ResetDailyTokens(ctx context.Context, p jobs.Maintenance) error {
	day, err := m.day(p)
	if err != nil {
		return err
	}
	n, err := m.stores.Users.ResetDailyTokens(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to reset daily tokens: %w", err)
	}
	m.log(ctx).InfoContext(ctx, "daily tokens reset", "date", domain.FormatDate(day), "users", n)
	return nil
}

// MarkMissedTasks flips pending instances scheduled up to yesterday to
// missed.
func (m *Maintenance) MarkMissedTasks(ctx context.Context, p jobs.Maintenance) error {
	day, err := m.day(p)
	if err != nil {
		return err
	}
	yesterday := day.AddDate(0, 0, -1)
	n, err := m.stores.Tasks.MarkMissed(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("failed to mark missed tasks: %w", err)
	}
	m.log(ctx).InfoContext(ctx, "missed tasks marked", "through", domain.FormatDate(yesterday), "count", n)
	return nil
}

// AggregateStreaks resets the streak of every user who completed less than
// the threshold of yesterday's tasks. Streaks are only ever reset here.
func (m *Maintenance) AggregateStreaks(ctx context.Context, p jobs.Maintenance) error {
	day, err := m.day(p)
	if err != nil {
		return err
	}
	yesterday := day.AddDate(0, 0, -1)
	log := m.log(ctx)

	tallies, err := m.stores.Tasks.DailyCompletionByUser(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("failed to tally completions: %w", err)
	}

	var errs []error
	reset := 0
	for _, t := range tallies {
		if t.Total == 0 || t.Completed*100 >= streakThreshold*t.Total {
			continue
		}
		if err := m.stores.Users.ResetStreak(ctx, t.UserID); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", t.UserID, err))
			continue
		}
		reset++
	}

	log.InfoContext(ctx, "streaks aggregated",
		"date", domain.FormatDate(yesterday),
		"users", len(tallies),
		"reset", reset)
	if len(errs) > 0 {
		return fmt.Errorf("failed to reset %d streaks: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// fanOut runs enqueue for every goal with bounded concurrency.
func (m *Maintenance) fanOut(ctx context.Context, goals []domain.Goal, enqueue func(ctx context.Context, g domain.Goal) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, goal := range goals {
		g.Go(func() error {
			if err := enqueue(gctx, goal); err != nil {
				return fmt.Errorf("goal %s: %w", goal.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// GenerateDailyTasksForAll enqueues task generation for every active goal.
// Job keys make repeats for the same day no-ops.
func (m *Maintenance) GenerateDailyTasksForAll(ctx context.Context, p jobs.Maintenance) error {
	day, err := m.day(p)
	if err != nil {
		return err
	}
	goals, err := m.stores.Goals.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active goals: %w", err)
	}

	err = m.fanOut(ctx, goals, func(ctx context.Context, g domain.Goal) error {
		_, err := m.enqueuer.GenerateDailyTasks(ctx, g.UserID, g.ID, day)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue daily tasks: %w", err)
	}
	m.log(ctx).InfoContext(ctx, "daily task generation enqueued", "date", domain.FormatDate(day), "goals", len(goals))
	return nil
}

// GenerateWeeklyMentorFeedback enqueues mentor feedback for active goals
// with tasks in the trailing week.
func (m *Maintenance) GenerateWeeklyMentorFeedback(ctx context.Context, p jobs.Maintenance) error {
	day, err := m.day(p)
	if err != nil {
		return err
	}
	goals, err := m.stores.Goals.ListActiveWithActivitySince(ctx, day.AddDate(0, 0, -activityWindowDays))
	if err != nil {
		return fmt.Errorf("failed to list goals with recent activity: %w", err)
	}

	err = m.fanOut(ctx, goals, func(ctx context.Context, g domain.Goal) error {
		_, err := m.enqueuer.WeeklyMentorFeedback(ctx, g.UserID, g.ID, day)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue mentor feedback: %w", err)
	}
	m.log(ctx).InfoContext(ctx, "weekly mentor feedback enqueued", "week", domain.ISOWeekKey(day), "goals", len(goals))
	return nil
}

// CleanupOldData deletes closed interactions or delivered notifications
// older than the payload's cutoff.
func (m *Maintenance) CleanupOldData(ctx context.Context, p jobs.CleanupOldData) error {
	cutoff := p.Cutoff(m.now().UTC())

	var n int64
	var err error
	switch p.Type {
	case jobs.CleanupInteractions:
		n, err = m.stores.Interactions.DeleteClosedBefore(ctx, cutoff)
	case jobs.CleanupNotifications:
		n, err = m.stores.Notifications.DeleteDeliveredBefore(ctx, cutoff)
	default:
		return queue.Permanent(fmt.Errorf("%w: cleanup type %q", domain.ErrValidation, p.Type))
	}
	if err != nil {
		return fmt.Errorf("failed to clean up %s: %w", p.Type, err)
	}

	m.log(ctx).InfoContext(ctx, "old data cleaned up", "type", p.Type, "cutoff", cutoff, "deleted", n)
	return nil
}
