package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/events"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/service"
	"github.com/phrazzld/goalforge/internal/store"
)

const (
	// mentorHistory is how many recent task instances the mentor sees.
	mentorHistory = 10

	// completionWindowDays is the trailing window used for the completion
	// rate handed to the task generator.
	completionWindowDays = 7

	mentorNotificationTitle = "Your AI Mentor has feedback"
)

// NotificationEnqueuer submits delivery jobs for persisted notifications.
type NotificationEnqueuer interface {
	SendNotification(ctx context.Context, notificationID uuid.UUID) (*queue.Job, error)
}

// AIJobsDeps holds everything AIJobs needs.
type AIJobsDeps struct {
	Tx        store.Transactor
	Stores    store.Stores
	Planner   *service.Planner
	Mentor    *service.Mentor
	Evaluator *service.Evaluator
	Tasks     *service.TaskGenerator
	Notifier  NotificationEnqueuer
	Events    events.Publisher
	// Observer is optional.
	Observer GenerationObserver
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// AIJobs handles the ai-jobs queue.
type AIJobs struct {
	tx        store.Transactor
	stores    store.Stores
	planner   *service.Planner
	mentor    *service.Mentor
	evaluator *service.Evaluator
	tasks     *service.TaskGenerator
	notifier  NotificationEnqueuer
	events    events.Publisher
	observer  GenerationObserver
	logger    *slog.Logger
	now       func() time.Time
}

var _ jobs.AIJobVisitor = (*AIJobs)(nil)

// NewAIJobs validates deps and creates the processor.
func NewAIJobs(deps AIJobsDeps) (*AIJobs, error) {
	switch {
	case deps.Tx == nil:
		return nil, errors.New("transactor cannot be nil")
	case deps.Planner == nil, deps.Mentor == nil, deps.Evaluator == nil, deps.Tasks == nil:
		return nil, errors.New("generation services cannot be nil")
	case deps.Notifier == nil:
		return nil, errors.New("notification enqueuer cannot be nil")
	case deps.Events == nil:
		return nil, errors.New("event publisher cannot be nil")
	case deps.Logger == nil:
		return nil, errors.New("logger cannot be nil")
	}

	p := &AIJobs{
		tx:        deps.Tx,
		stores:    deps.Stores,
		planner:   deps.Planner,
		mentor:    deps.Mentor,
		evaluator: deps.Evaluator,
		tasks:     deps.Tasks,
		notifier:  deps.Notifier,
		events:    deps.Events,
		observer:  deps.Observer,
		logger:    deps.Logger.With("component", "ai_jobs"),
		now:       deps.Now,
	}
	if p.observer == nil {
		p.observer = noopObserver{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

func (p *AIJobs) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, p.logger)
}

// emit publishes an event. Delivery is best effort: the job's work is
// already committed.
func (p *AIJobs) emit(ctx context.Context, typ events.Type, userID uuid.UUID, payload any) {
	if err := events.Emit(ctx, p.events, typ, userID, payload); err != nil {
		p.log(ctx).WarnContext(ctx, "failed to publish event", "event_type", typ, "error", err)
	}
}

// loadOwnedGoal loads the user and goal and checks ownership.
func (p *AIJobs) loadOwnedGoal(ctx context.Context, userID, goalID uuid.UUID) (*domain.User, *domain.Goal, error) {
	user, err := p.stores.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, loadError("user", err)
	}
	goal, err := p.stores.Goals.GetByID(ctx, goalID)
	if err != nil {
		return nil, nil, loadError("goal", err)
	}
	if goal.UserID != user.ID {
		return nil, nil, queue.Permanent(fmt.Errorf("%w: goal %s", ErrWrongOwner, goal.ID))
	}
	return user, goal, nil
}

// GeneratePlan creates the next plan version for a goal and activates it.
func (p *AIJobs) GeneratePlan(ctx context.Context, job *queue.Job, payload jobs.GeneratePlan) error {
	log := p.log(ctx).With("goal_id", payload.GoalID, "user_id", payload.UserID)

	user, goal, err := p.loadOwnedGoal(ctx, payload.UserID, payload.GoalID)
	if err != nil {
		return err
	}

	in, done, err := p.beginInteraction(ctx, job, interactionSpec{
		userID:        user.ID,
		goalID:        &goal.ID,
		role:          domain.AIRolePlanner,
		provider:      p.planner.ProviderName(),
		promptVersion: p.planner.PromptVersion(),
	})
	if err != nil {
		return err
	}
	if done {
		log.InfoContext(ctx, "plan already generated for this job")
		return nil
	}

	req := service.PlanRequest{
		GoalTitle:       goal.Title,
		GoalDescription: goal.Description,
		Category:        goal.Category,
		TargetDate:      goal.TargetDate,
		Preferences:     user.Preferences,
	}
	if days := goal.DaysRemaining(p.now()); days != nil && *days > 0 {
		req.DurationDays = *days
	}
	prompt, err := p.planner.Prompt(req)
	if err != nil {
		p.failInteraction(ctx, in, err)
		return queue.Permanent(err)
	}
	if err := p.checkBudget(ctx, in, user, prompt); err != nil {
		return err
	}

	gen, err := generate(ctx, p, in, OutputPlan, func(ctx context.Context) (*service.Generation[service.PlanOutput], error) {
		return p.planner.GeneratePlan(ctx, prompt)
	})
	if err != nil {
		return err
	}

	plan := planFromOutput(goal.ID, in.ID, gen.Output, p.now().UTC())
	err = p.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		latest, err := s.Plans.LatestVersion(ctx, goal.ID)
		if err != nil {
			return fmt.Errorf("failed to read latest plan version: %w", err)
		}
		plan.Version = latest + 1
		if err := s.Plans.Create(ctx, plan); err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}
		if err := s.Goals.UpdateStatus(ctx, goal.ID, domain.GoalStatusActive); err != nil {
			return fmt.Errorf("failed to activate goal: %w", err)
		}
		return completeGeneration(ctx, p, s, in, OutputPlan, gen)
	})
	if err != nil {
		p.failInteraction(ctx, in, err)
		return err
	}

	log.InfoContext(ctx, "plan generated",
		"plan_id", plan.ID,
		"version", plan.Version,
		"milestones", len(plan.Milestones),
		"tokens", totalTokens(gen.Tokens))
	p.emit(ctx, events.TypePlanGenerated, user.ID, events.PlanGenerated{
		GoalID:         goal.ID,
		PlanID:         plan.ID,
		Version:        plan.Version,
		MilestoneCount: len(plan.Milestones),
	})
	return nil
}

func planFromOutput(goalID, interactionID uuid.UUID, out service.PlanOutput, now time.Time) *domain.Plan {
	plan := &domain.Plan{
		ID:                    uuid.New(),
		GoalID:                goalID,
		Summary:               out.Summary,
		Approach:              out.Approach,
		EstimatedDurationDays: out.EstimatedDurationDays,
		DifficultyLevel:       out.DifficultyLevel,
		WeeklyHoursMin:        out.WeeklyTimeCommitment.MinHours,
		WeeklyHoursMax:        out.WeeklyTimeCommitment.MaxHours,
		Prerequisites:         out.Prerequisites,
		PotentialChallenges:   out.PotentialChallenges,
		InteractionID:         &interactionID,
		CreatedAt:             now,
	}
	for _, m := range out.Milestones {
		plan.Milestones = append(plan.Milestones, domain.Milestone{
			ID:            uuid.New(),
			PlanID:        plan.ID,
			Title:         m.Title,
			Description:   m.Description,
			TargetWeek:    m.TargetWeek,
			KeyActivities: m.KeyActivities,
		})
	}
	domain.SortMilestones(plan.Milestones)
	return plan
}

// GenerateDailyTasks creates the task instances of one day for a goal.
func (p *AIJobs) GenerateDailyTasks(ctx context.Context, job *queue.Job, payload jobs.GenerateDailyTasks) error {
	log := p.log(ctx).With("goal_id", payload.GoalID, "user_id", payload.UserID, "date", payload.Date)

	day, err := payload.Day()
	if err != nil {
		return queue.Permanent(err)
	}

	user, goal, err := p.loadOwnedGoal(ctx, payload.UserID, payload.GoalID)
	if err != nil {
		return err
	}
	if goal.Status != domain.GoalStatusActive {
		log.InfoContext(ctx, "goal is not active, skipping task generation", "status", goal.Status)
		return nil
	}

	existing, err := p.stores.Tasks.CountInstancesOn(ctx, goal.ID, day)
	if err != nil {
		return fmt.Errorf("failed to count scheduled tasks: %w", err)
	}
	if existing > 0 {
		log.InfoContext(ctx, "tasks already scheduled for day", "count", existing)
		return nil
	}

	plan, err := p.stores.Plans.GetCurrent(ctx, goal.ID)
	if err != nil {
		return loadError("plan", err)
	}
	milestone, err := plan.MilestoneForWeek(goal.CurrentWeek(day))
	if err != nil {
		return queue.Permanent(fmt.Errorf("plan %s: %w", plan.ID, err))
	}

	history, err := p.stores.Tasks.ListInstancesBetween(ctx, goal.ID, day.AddDate(0, 0, -completionWindowDays), day.AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("failed to load recent tasks: %w", err)
	}

	in, done, err := p.beginInteraction(ctx, job, interactionSpec{
		userID:        user.ID,
		goalID:        &goal.ID,
		role:          domain.AIRoleTaskGenerator,
		provider:      p.tasks.ProviderName(),
		promptVersion: p.tasks.PromptVersion(),
	})
	if err != nil {
		return err
	}
	if done {
		log.InfoContext(ctx, "tasks already generated for this job")
		return nil
	}

	prompt, err := p.tasks.Prompt(service.TaskRequest{
		GoalTitle:      goal.Title,
		Milestone:      *milestone,
		DayOfPlan:      domain.DaysBetween(goal.StartDate(), day) + 1,
		CompletionRate: domain.CompletionRateOrDefault(history),
		StreakDays:     user.StreakDays,
		Date:           day,
	})
	if err != nil {
		p.failInteraction(ctx, in, err)
		return queue.Permanent(err)
	}
	if err := p.checkBudget(ctx, in, user, prompt); err != nil {
		return err
	}

	gen, err := generate(ctx, p, in, OutputTasks, func(ctx context.Context) (*service.Generation[service.TasksOutput], error) {
		return p.tasks.GenerateTasks(ctx, prompt)
	})
	if err != nil {
		return err
	}

	now := p.now().UTC()
	tasks := make([]domain.Task, 0, len(gen.Output.Tasks))
	instances := make([]domain.TaskInstance, 0, len(gen.Output.Tasks))
	for _, t := range gen.Output.Tasks {
		task := domain.Task{
			ID:               uuid.New(),
			GoalID:           goal.ID,
			MilestoneID:      &milestone.ID,
			Title:            t.Title,
			Description:      t.Description,
			Reasoning:        t.Reasoning,
			EstimatedMinutes: t.EstimatedMinutes,
			Priority:         t.Priority,
			InteractionID:    &in.ID,
			CreatedAt:        now,
		}
		tasks = append(tasks, task)
		instances = append(instances, domain.TaskInstance{
			ID:              uuid.New(),
			TaskID:          task.ID,
			GoalID:          goal.ID,
			UserID:          user.ID,
			ScheduledDate:   day,
			Status:          domain.TaskStatusPending,
			DailyMotivation: gen.Output.DailyMotivation,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	err = p.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		if err := s.Tasks.CreateBatch(ctx, tasks, instances); err != nil {
			return fmt.Errorf("failed to create tasks: %w", err)
		}
		return completeGeneration(ctx, p, s, in, OutputTasks, gen)
	})
	if err != nil {
		p.failInteraction(ctx, in, err)
		return err
	}

	log.InfoContext(ctx, "daily tasks generated",
		"count", len(tasks),
		"milestone_id", milestone.ID,
		"tokens", totalTokens(gen.Tokens))
	p.emit(ctx, events.TypeTasksGenerated, user.ID, events.TasksGenerated{
		GoalID: goal.ID,
		Date:   payload.Date,
		Count:  len(tasks),
	})
	return nil
}

// MentorFeedback generates feedback on recent progress and notifies the
// user in-app plus on every other channel they enabled.
func (p *AIJobs) MentorFeedback(ctx context.Context, job *queue.Job, payload jobs.MentorFeedback) error {
	log := p.log(ctx).With("goal_id", payload.GoalID, "user_id", payload.UserID)

	user, goal, err := p.loadOwnedGoal(ctx, payload.UserID, payload.GoalID)
	if err != nil {
		return err
	}

	recent, err := p.stores.Tasks.RecentInstances(ctx, goal.ID, mentorHistory)
	if err != nil {
		return fmt.Errorf("failed to load recent tasks: %w", err)
	}

	in, done, err := p.beginInteraction(ctx, job, interactionSpec{
		userID:        user.ID,
		goalID:        &goal.ID,
		role:          domain.AIRoleMentor,
		provider:      p.mentor.ProviderName(),
		promptVersion: p.mentor.PromptVersion(),
	})
	if err != nil {
		return err
	}
	if done {
		log.InfoContext(ctx, "mentor feedback already generated for this job")
		return nil
	}

	rate, _ := domain.CompletionRate(recent)
	req := service.MentorRequest{
		GoalTitle:      goal.Title,
		StreakDays:     user.StreakDays,
		CompletionRate: rate,
		Context:        goal.Description,
	}
	for _, inst := range recent {
		rt := service.RecentTask{Status: string(inst.Status), CompletedAt: inst.CompletedAt}
		if inst.Task != nil {
			rt.Title = inst.Task.Title
		}
		req.RecentTasks = append(req.RecentTasks, rt)
	}

	prompt, err := p.mentor.Prompt(req)
	if err != nil {
		p.failInteraction(ctx, in, err)
		return queue.Permanent(err)
	}
	if err := p.checkBudget(ctx, in, user, prompt); err != nil {
		return err
	}

	gen, err := generate(ctx, p, in, OutputFeedback, func(ctx context.Context) (*service.Generation[service.MentorOutput], error) {
		return p.mentor.GenerateFeedback(ctx, req, prompt)
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(map[string]any{"goalId": goal.ID, "feedback": gen.Output})
	if err != nil {
		p.failInteraction(ctx, in, err)
		return fmt.Errorf("failed to encode notification data: %w", err)
	}
	notes := []*domain.Notification{
		domain.NewNotification(user.ID, domain.NotificationMentorMessage, domain.NotificationChannelInApp, mentorNotificationTitle, gen.Output.Message, data),
	}
	for _, ch := range []domain.NotificationChannel{domain.NotificationChannelEmail, domain.NotificationChannelPush} {
		if user.Preferences.WantsChannel(ch) {
			notes = append(notes, domain.NewNotification(user.ID, domain.NotificationMentorMessage, ch, mentorNotificationTitle, gen.Output.Message, data))
		}
	}

	err = p.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		for _, n := range notes {
			if err := s.Notifications.Create(ctx, n); err != nil {
				return fmt.Errorf("failed to create %s notification: %w", n.Channel, err)
			}
		}
		return completeGeneration(ctx, p, s, in, OutputFeedback, gen)
	})
	if err != nil {
		p.failInteraction(ctx, in, err)
		return err
	}

	// The interaction is completed, so a failed enqueue cannot be retried
	// by failing the job. The notification stays pending instead.
	for _, n := range notes[1:] {
		if _, err := p.notifier.SendNotification(ctx, n.ID); err != nil {
			log.ErrorContext(ctx, "failed to enqueue notification delivery",
				"notification_id", n.ID,
				"channel", n.Channel,
				"error", err)
		}
	}

	log.InfoContext(ctx, "mentor feedback generated",
		"tone", gen.Output.Tone,
		"channels", len(notes),
		"tokens", totalTokens(gen.Tokens))
	p.emit(ctx, events.TypeMentorFeedback, user.ID, events.MentorFeedback{
		GoalID:         goal.ID,
		NotificationID: notes[0].ID,
		Tone:           gen.Output.Tone,
	})
	return nil
}

// EvaluateTask scores a completed task instance. Instances with blank notes
// and with a recorded duration get the quick heuristic instead of a model
// call.
func (p *AIJobs) EvaluateTask(ctx context.Context, job *queue.Job, payload jobs.EvaluateTask) error {
	log := p.log(ctx).With("task_instance_id", payload.TaskInstanceID, "user_id", payload.UserID)

	inst, err := p.stores.Tasks.GetInstance(ctx, payload.TaskInstanceID)
	if err != nil {
		return loadError("task instance", err)
	}
	if inst.UserID != payload.UserID {
		return queue.Permanent(fmt.Errorf("%w: task instance %s", ErrWrongOwner, inst.ID))
	}
	if inst.Status != domain.TaskStatusCompleted {
		return queue.Permanent(fmt.Errorf("%w: task instance %s is %s", domain.ErrInvalidStatus, inst.ID, inst.Status))
	}

	req := service.EvaluationRequest{UserNotes: inst.UserNotes}
	if inst.Task != nil {
		req.TaskTitle = inst.Task.Title
		req.TaskDescription = inst.Task.Description
		req.ExpectedMinutes = inst.Task.EstimatedMinutes
	}
	// A missing or zero duration is not evidence of speed.
	req.ActualMinutes = req.ExpectedMinutes
	timed := inst.ActualMinutes != nil && *inst.ActualMinutes > 0
	if timed {
		req.ActualMinutes = *inst.ActualMinutes
	}

	if strings.TrimSpace(inst.UserNotes) == "" && timed {
		ev := service.QuickEvaluate(req)
		if err := p.stores.Tasks.SaveEvaluation(ctx, inst.ID, ev.QualityScore, ev.Feedback); err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}
		log.InfoContext(ctx, "quick evaluation completed", "score", ev.QualityScore)
		p.emit(ctx, events.TypeTaskEvaluated, inst.UserID, events.TaskEvaluated{
			TaskInstanceID: inst.ID,
			QualityScore:   ev.QualityScore,
			Quick:          true,
		})
		return nil
	}

	user, err := p.stores.Users.GetByID(ctx, inst.UserID)
	if err != nil {
		return loadError("user", err)
	}

	in, done, err := p.beginInteraction(ctx, job, interactionSpec{
		userID:        user.ID,
		goalID:        &inst.GoalID,
		role:          domain.AIRoleEvaluator,
		provider:      p.evaluator.ProviderName(),
		promptVersion: p.evaluator.PromptVersion(),
	})
	if err != nil {
		return err
	}
	if done {
		log.InfoContext(ctx, "task already evaluated for this job")
		return nil
	}

	prompt, err := p.evaluator.Prompt(req)
	if err != nil {
		p.failInteraction(ctx, in, err)
		return queue.Permanent(err)
	}
	if err := p.checkBudget(ctx, in, user, prompt); err != nil {
		return err
	}

	gen, err := generate(ctx, p, in, OutputEvaluation, func(ctx context.Context) (*service.Generation[service.EvaluationOutput], error) {
		return p.evaluator.Evaluate(ctx, req, prompt)
	})
	if err != nil {
		return err
	}

	err = p.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		if err := s.Tasks.SaveEvaluation(ctx, inst.ID, gen.Output.QualityScore, gen.Output.Feedback); err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}
		return completeGeneration(ctx, p, s, in, OutputEvaluation, gen)
	})
	if err != nil {
		p.failInteraction(ctx, in, err)
		return err
	}

	log.InfoContext(ctx, "task evaluated",
		"score", gen.Output.QualityScore,
		"tokens", totalTokens(gen.Tokens))
	p.emit(ctx, events.TypeTaskEvaluated, inst.UserID, events.TaskEvaluated{
		TaskInstanceID: inst.ID,
		QualityScore:   gen.Output.QualityScore,
	})
	return nil
}
