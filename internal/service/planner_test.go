package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/mocks"
	"github.com/phrazzld/goalforge/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `{
  "summary": "Run a half marathon in twelve weeks",
  "approach": "Build aerobic base first, then add tempo and long runs gradually.",
  "estimatedDurationDays": 14,
  "difficultyLevel": "intermediate",
  "milestones": [
    {"title": "Long run of 15km", "targetWeek": 8, "keyActivities": ["long run"]},
    {"title": "Run 5km without stopping", "targetWeek": 2, "keyActivities": ["easy runs", "stretching"]},
    {"title": "Tempo run at race pace", "targetWeek": 5, "keyActivities": ["tempo"]}
  ],
  "weeklyTimeCommitment": {"minHours": 6, "maxHours": 3},
  "prerequisites": ["running shoes"]
}`

func TestNewPlanner_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewPlanner(nil, discard)
	assert.Error(t, err)
	_, err = NewPlanner(&mocks.MockProvider{}, nil)
	assert.Error(t, err)
}

func TestPlanner_GeneratePlan_AppliesRules(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProviderWithJSON(validPlanJSON)
	planner, err := NewPlanner(provider, discard)
	require.NoError(t, err)

	target := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	prompt, err := planner.Prompt(PlanRequest{
		GoalTitle:    "Run a half marathon",
		Category:     "fitness",
		TargetDate:   &target,
		DurationDays: 84,
		Preferences:  domain.DefaultPreferences(),
	})
	require.NoError(t, err)
	assert.Contains(t, prompt.User, "Run a half marathon")
	assert.Contains(t, prompt.User, "2026-12-31")
	assert.Positive(t, prompt.EstimatedTokens())

	gen, err := planner.GeneratePlan(context.Background(), prompt)
	require.NoError(t, err)

	plan := gen.Output
	require.Len(t, plan.Milestones, 3)
	assert.Equal(t, 2, plan.Milestones[0].TargetWeek)
	assert.Equal(t, 5, plan.Milestones[1].TargetWeek)
	assert.Equal(t, 8, plan.Milestones[2].TargetWeek)

	assert.Equal(t, 3.0, plan.WeeklyTimeCommitment.MinHours)
	assert.Equal(t, 6.0, plan.WeeklyTimeCommitment.MaxHours)

	// Week 8 is past ceil(14/7) = 2 weeks.
	assert.Equal(t, 56, plan.EstimatedDurationDays)

	assert.Equal(t, generation.Tokens{Input: 100, Output: 50, Total: 150}, gen.Tokens)
	assert.Equal(t, validPlanJSON, gen.RawOutput)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 4096, calls[0].Options.MaxTokens)
	assert.InDelta(t, 0.7, calls[0].Options.Temperature, 0.0001)
	assert.NotEmpty(t, calls[0].SystemPrompt)
}

func TestPlanner_Prompt_RequiresTitle(t *testing.T) {
	t.Parallel()

	planner, err := NewPlanner(&mocks.MockProvider{}, discard)
	require.NoError(t, err)

	_, err = planner.Prompt(PlanRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAdjustPlan_KeepsDurationWhenMilestonesFit(t *testing.T) {
	t.Parallel()

	plan := PlanOutput{
		EstimatedDurationDays: 15,
		Milestones: []MilestoneOutput{
			{TargetWeek: 3},
			{TargetWeek: 1},
		},
		WeeklyTimeCommitment: WeeklyTimeCommitment{MinHours: 2, MaxHours: 4},
	}
	adjustPlan(&plan)

	// ceil(15/7) = 3, so week 3 fits.
	assert.Equal(t, 15, plan.EstimatedDurationDays)
	assert.Equal(t, 1, plan.Milestones[0].TargetWeek)
	assert.Equal(t, 2.0, plan.WeeklyTimeCommitment.MinHours)
}

func TestAdjustPlan_StableForEqualWeeks(t *testing.T) {
	t.Parallel()

	plan := PlanOutput{
		EstimatedDurationDays: 30,
		Milestones: []MilestoneOutput{
			{Title: "b", TargetWeek: 2},
			{Title: "a", TargetWeek: 2},
			{Title: "c", TargetWeek: 1},
		},
	}
	adjustPlan(&plan)

	assert.Equal(t, []string{"c", "b", "a"}, []string{
		plan.Milestones[0].Title, plan.Milestones[1].Title, plan.Milestones[2].Title,
	})
}

func TestPlanner_GeneratePlan_ValidationFailure(t *testing.T) {
	t.Parallel()

	raw := `{"summary": "short", "approach": "x", "estimatedDurationDays": 0, "difficultyLevel": "expert", "milestones": []}`
	planner, err := NewPlanner(mocks.NewMockProviderWithJSON(raw), discard)
	require.NoError(t, err)

	_, err = planner.GeneratePlan(context.Background(), Prompt{User: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	assert.ErrorIs(t, err, output.ErrValidation)

	var invalid *generation.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, raw, invalid.RawOutput)
	assert.Equal(t, 150, invalid.Tokens.Total)

	ve, ok := output.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, PlannerSchema, ve.SchemaName)

	paths := make(map[string]bool)
	for _, fe := range ve.FieldErrors {
		paths[fe.Path] = true
	}
	assert.True(t, paths["summary"])
	assert.True(t, paths["difficultyLevel"])
	assert.True(t, paths["milestones"])
}

func TestPlanner_GeneratePlan_ProviderError(t *testing.T) {
	t.Parallel()

	providerErr := errors.Join(generation.ErrTransientFailure, errors.New("503"))
	planner, err := NewPlanner(mocks.NewMockProviderWithError(providerErr), discard)
	require.NoError(t, err)

	_, err = planner.GeneratePlan(context.Background(), Prompt{User: "p"})
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
	assert.Equal(t, generation.ProviderGemini, planner.ProviderName())
	assert.Equal(t, "planner.v1", planner.PromptVersion())
}
