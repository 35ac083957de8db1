package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/prompts"
)

var plannerOptions = generation.Options{MaxTokens: 4096, Temperature: 0.7}

// PlanRequest describes the goal to plan.
type PlanRequest struct {
	GoalTitle       string
	GoalDescription string
	Category        string
	TargetDate      *time.Time
	// DurationDays is the number of days until TargetDate; 0 when unknown.
	DurationDays int
	Preferences  domain.Preferences
}

// Planner generates structured plans for goals.
type Planner struct {
	provider generation.Provider
	logger   *slog.Logger
}

// NewPlanner creates a Planner backed by provider.
func NewPlanner(provider generation.Provider, logger *slog.Logger) (*Planner, error) {
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Planner{provider: provider, logger: logger.With("component", "planner")}, nil
}

// PromptVersion identifies the prompt template in provenance records.
func (s *Planner) PromptVersion() string { return prompts.PlannerVersion }

// ProviderName identifies the backend in provenance records.
func (s *Planner) ProviderName() generation.ProviderName { return s.provider.Name() }

// Prompt renders the prompt for req without calling the provider.
func (s *Planner) Prompt(req PlanRequest) (Prompt, error) {
	if req.GoalTitle == "" {
		return Prompt{}, fmt.Errorf("%w: goal title is required", ErrInvalidRequest)
	}
	params := prompts.PlannerParams{
		GoalTitle:       req.GoalTitle,
		GoalDescription: req.GoalDescription,
		Category:        req.Category,
		DurationDays:    req.DurationDays,
		Timezone:        req.Preferences.Timezone,
		WeekStartsOn:    req.Preferences.WeekStartsOn,
	}
	if req.TargetDate != nil {
		params.TargetDate = domain.FormatDate(*req.TargetDate)
	}
	user, err := prompts.BuildPlanner(params)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{User: user, System: prompts.PlannerSystem}, nil
}

// GeneratePlan asks the provider for a plan and normalizes it.
func (s *Planner) GeneratePlan(ctx context.Context, prompt Prompt) (*Generation[PlanOutput], error) {
	gen, err := generate[PlanOutput](ctx, s.provider, s.logger, prompt, plannerOptions, PlannerSchema)
	if err != nil {
		return nil, err
	}
	adjustPlan(&gen.Output)
	return gen, nil
}

// adjustPlan orders milestones by week, fixes an inverted hours range and
// stretches the duration to cover the last milestone.
func adjustPlan(plan *PlanOutput) {
	sort.SliceStable(plan.Milestones, func(i, j int) bool {
		return plan.Milestones[i].TargetWeek < plan.Milestones[j].TargetWeek
	})

	wtc := &plan.WeeklyTimeCommitment
	if wtc.MinHours > wtc.MaxHours {
		wtc.MinHours, wtc.MaxHours = wtc.MaxHours, wtc.MinHours
	}

	if len(plan.Milestones) == 0 {
		return
	}
	lastWeek := plan.Milestones[len(plan.Milestones)-1].TargetWeek
	estimatedWeeks := (plan.EstimatedDurationDays + 6) / 7
	if lastWeek > estimatedWeeks {
		plan.EstimatedDurationDays = lastWeek * 7
	}
}
