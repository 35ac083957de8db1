package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/prompts"
)

var taskGeneratorOptions = generation.Options{MaxTokens: 2048, Temperature: 0.8}

// Bounds applied to generated task durations.
const (
	MinTaskCount = 2

	acceptMinMinutes = 10
	acceptMaxMinutes = 120
	clampMinMinutes  = 15
	clampMaxMinutes  = 90
)

// TaskRequest describes the day to generate tasks for.
type TaskRequest struct {
	GoalTitle string
	Milestone domain.Milestone
	DayOfPlan int
	// CompletionRate is the trailing completion percentage.
	CompletionRate float64
	StreakDays     int
	Date           time.Time
}

// TaskGenerator generates the daily tasks for a goal.
type TaskGenerator struct {
	provider generation.Provider
	logger   *slog.Logger
}

// NewTaskGenerator creates a TaskGenerator backed by provider.
func NewTaskGenerator(provider generation.Provider, logger *slog.Logger) (*TaskGenerator, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &TaskGenerator{provider: provider, logger: logger.With("component", "task_generator")}, nil
}

// PromptVersion identifies the prompt template in provenance records.
func (s *TaskGenerator) PromptVersion() string { return prompts.TaskGeneratorVersion }

// ProviderName identifies the backend in provenance records.
func (s *TaskGenerator) ProviderName() generation.ProviderName { return s.provider.Name() }

// Prompt renders the prompt for req without calling the provider.
func (s *TaskGenerator) Prompt(req TaskRequest) (Prompt, error) {
	user, err := prompts.BuildTaskGenerator(prompts.TaskGeneratorParams{
		GoalTitle:            req.GoalTitle,
		MilestoneTitle:       req.Milestone.Title,
		MilestoneDescription: req.Milestone.Description,
		TargetWeek:           req.Milestone.TargetWeek,
		KeyActivities:        req.Milestone.KeyActivities,
		DayOfPlan:            req.DayOfPlan,
		CompletionRate:       req.CompletionRate,
		StreakDays:           req.StreakDays,
		Date:                 req.Date,
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{User: user, System: prompts.TaskGeneratorSystem}, nil
}

// GenerateTasks asks the provider for the day's tasks. Fewer than two tasks
// is reported as ErrDegenerateOutput.
func (s *TaskGenerator) GenerateTasks(ctx context.Context, prompt Prompt) (*Generation[TasksOutput], error) {
	gen, err := generate[TasksOutput](ctx, s.provider, s.logger, prompt, taskGeneratorOptions, TaskGeneratorSchema)
	if err != nil {
		return nil, err
	}

	if len(gen.Output.Tasks) < MinTaskCount {
		return nil, &generation.InvalidResponseError{
			RawOutput: gen.RawOutput,
			Tokens:    gen.Tokens,
			Err:       fmt.Errorf("%w: %d task(s) generated, need at least %d", ErrDegenerateOutput, len(gen.Output.Tasks), MinTaskCount),
		}
	}

	adjustTasks(gen.Output.Tasks)
	return gen, nil
}

func adjustTasks(tasks []TaskOutput) {
	for i := range tasks {
		m := tasks[i].EstimatedMinutes
		if m < acceptMinMinutes || m > acceptMaxMinutes {
			tasks[i].EstimatedMinutes = max(clampMinMinutes, min(clampMaxMinutes, m))
		}
	}

	for _, t := range tasks {
		if t.Priority == domain.TaskPriorityHigh || t.Priority == domain.TaskPriorityMedium {
			return
		}
	}
	if len(tasks) > 0 {
		tasks[0].Priority = domain.TaskPriorityMedium
	}
}
