// Package scheduler enqueues the maintenance jobs on their cron schedules.
//
// Every firing enqueues its job under a key derived from the job name and
// the scheduled minute, so running several worker processes with the
// scheduler enabled still produces one job per firing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/robfig/cron/v3"
)

// Trigger names, matching the keys of config.ScheduleConfig.Expressions.
const (
	TriggerResetTokens      = "reset_tokens"
	TriggerMarkMissed       = "mark_missed"
	TriggerAggregateStreaks = "aggregate_streaks"
	TriggerDailyTasks       = "daily_tasks"
	TriggerWeeklyMentor     = "weekly_mentor"
	TriggerCleanup          = "cleanup"
)

// ErrUnknownTrigger is returned by Fire for a name outside Triggers.
var ErrUnknownTrigger = errors.New("unknown trigger")

var triggerJobs = map[string]string{
	TriggerResetTokens:      jobs.JobResetDailyTokens,
	TriggerMarkMissed:       jobs.JobMarkMissedTasks,
	TriggerAggregateStreaks: jobs.JobAggregateStreaks,
	TriggerDailyTasks:       jobs.JobGenerateDailyTasksForAll,
	TriggerWeeklyMentor:     jobs.JobGenerateWeeklyMentorFeedback,
	TriggerCleanup:          jobs.JobCleanupOldData,
}

// Triggers lists the trigger names in a stable order.
func Triggers() []string {
	names := make([]string, 0, len(triggerJobs))
	for name := range triggerJobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enqueuer submits maintenance jobs.
type Enqueuer interface {
	Maintenance(ctx context.Context, name, id string, payload any) (*queue.Job, error)
}

// Scheduler fires the configured maintenance triggers.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	location *time.Location
	daysOld  int
	logger   *slog.Logger
}

// New registers every trigger that has a non-empty expression. Expressions
// use the standard five-field syntax and are evaluated in cfg.Timezone.
func New(cfg config.ScheduleConfig, enqueuer Enqueuer, logger *slog.Logger) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, errors.New("enqueuer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
	}

	l := logger.With("component", "scheduler")
	cl := cronLogger{logger: l}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		enqueuer: enqueuer,
		location: loc,
		daysOld:  cfg.CleanupDaysOld,
		logger:   l,
	}

	for _, name := range Triggers() {
		expr := cfg.Expressions()[name]
		if expr == "" {
			l.Info("trigger disabled", "trigger", name)
			continue
		}
		if _, err := s.cron.AddFunc(expr, func() { s.fire(name) }); err != nil {
			return nil, fmt.Errorf("invalid cron expression for %s: %w", name, err)
		}
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled. Firings that
// are still enqueueing finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting scheduler",
		"entries", len(s.cron.Entries()),
		"timezone", s.location.String())
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Entries returns how many triggers are scheduled.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) fire(name string) {
	ctx := context.Background()
	if _, err := s.Fire(ctx, name, time.Now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue scheduled job", "trigger", name, "error", err)
	}
}

// Fire enqueues the jobs of trigger name as if it fired at at. The target
// day is at's date in the schedule timezone. Firing twice for the same
// minute enqueues the jobs once.
func (s *Scheduler) Fire(ctx context.Context, name string, at time.Time) ([]*queue.Job, error) {
	job, ok := triggerJobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
	}

	local := at.In(s.location)
	if name == TriggerCleanup {
		var out []*queue.Job
		for _, typ := range []string{jobs.CleanupInteractions, jobs.CleanupNotifications} {
			j, err := s.enqueuer.Maintenance(ctx, job, jobs.MaintenanceKey(job+"-"+typ, local),
				jobs.CleanupOldData{Type: typ, DaysOld: s.daysOld})
			if err != nil {
				return out, fmt.Errorf("failed to enqueue %s %s: %w", job, typ, err)
			}
			out = append(out, j)
		}
		s.logger.InfoContext(ctx, "trigger fired", "trigger", name, "jobs", len(out))
		return out, nil
	}

	day := domain.StartOfDay(local, s.location)
	j, err := s.enqueuer.Maintenance(ctx, job, jobs.MaintenanceKey(job, local),
		jobs.Maintenance{Date: domain.FormatDate(day)})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", job, err)
	}
	s.logger.InfoContext(ctx, "trigger fired", "trigger", name, "job_id", j.ID, "date", domain.FormatDate(day))
	return []*queue.Job{j}, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
