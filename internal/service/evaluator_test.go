package service

import (
	"context"
	"testing"

	"github.com/phrazzld/goalforge/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustEvaluation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		in              EvaluationOutput
		ratio           float64
		wantScore       int
		wantFeedback    string
		wantImprovement string
	}{
		{
			name:            "slow high score gets split suggestion",
			in:              EvaluationOutput{QualityScore: 4, Feedback: "Well done overall."},
			ratio:           2.5,
			wantScore:       4,
			wantFeedback:    "Well done overall.",
			wantImprovement: SplitTaskSuggestion,
		},
		{
			name:            "slow keeps existing improvement",
			in:              EvaluationOutput{QualityScore: 5, Feedback: "Well done overall.", Improvement: "Plan ahead."},
			ratio:           3,
			wantScore:       5,
			wantFeedback:    "Well done overall.",
			wantImprovement: "Plan ahead.",
		},
		{
			name:         "slow low score untouched",
			in:           EvaluationOutput{QualityScore: 3, Feedback: "Acceptable work."},
			ratio:        2.5,
			wantScore:    3,
			wantFeedback: "Acceptable work.",
		},
		{
			name:         "very fast perfect score capped",
			in:           EvaluationOutput{QualityScore: 5, Feedback: "Exceptional work, you exceeded the goal."},
			ratio:        0.2,
			wantScore:    4,
			wantFeedback: "Good work, you Good the goal.",
		},
		{
			name:         "fast but not too fast keeps perfect score",
			in:           EvaluationOutput{QualityScore: 5, Feedback: "Exceptional work."},
			ratio:        0.3,
			wantScore:    5,
			wantFeedback: "Exceptional work.",
		},
		{
			name:         "score above range clamped",
			in:           EvaluationOutput{QualityScore: 9, Feedback: "Great."},
			ratio:        1,
			wantScore:    5,
			wantFeedback: "Great.",
		},
		{
			name:         "score below range clamped",
			in:           EvaluationOutput{QualityScore: -2, Feedback: "Poor."},
			ratio:        1,
			wantScore:    1,
			wantFeedback: "Poor.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := tt.in
			adjustEvaluation(&ev, tt.ratio)
			assert.Equal(t, tt.wantScore, ev.QualityScore)
			assert.Equal(t, tt.wantFeedback, ev.Feedback)
			assert.Equal(t, tt.wantImprovement, ev.Improvement)
		})
	}
}

func TestQuickEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		expected  int
		actual    int
		wantScore int
		wantText  string
	}{
		{name: "on time", expected: 30, actual: 30, wantScore: 4, wantText: "within expected time"},
		{name: "lower bound on time", expected: 50, actual: 40, wantScore: 4, wantText: "within expected time"},
		{name: "upper bound on time", expected: 50, actual: 60, wantScore: 4, wantText: "within expected time"},
		{name: "quick", expected: 60, actual: 20, wantScore: 3, wantText: "completed quickly"},
		{name: "a bit longer", expected: 40, actual: 60, wantScore: 4, wantText: "thoroughness"},
		{name: "much longer", expected: 30, actual: 90, wantScore: 3, wantText: "significantly longer"},
		{name: "unknown estimate", expected: 0, actual: 45, wantScore: 4, wantText: "within expected time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := QuickEvaluate(EvaluationRequest{ExpectedMinutes: tt.expected, ActualMinutes: tt.actual})
			assert.Equal(t, tt.wantScore, ev.QualityScore)
			assert.Contains(t, ev.Feedback, tt.wantText)
			assert.Equal(t, QuickEncouragement, ev.Encouragement)
			assert.Empty(t, ev.Improvement)
		})
	}
}

func TestEvaluator_Evaluate(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProviderWithJSON(`{
		"qualityScore": 5,
		"feedback": "Exceptional focus on the hardest part.",
		"encouragement": "Keep it up"
	}`)
	evaluator, err := NewEvaluator(provider, discard)
	require.NoError(t, err)

	req := EvaluationRequest{TaskTitle: "Write intro", ExpectedMinutes: 60, ActualMinutes: 10, UserNotes: "rushed it"}
	prompt, err := evaluator.Prompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt.User, "rushed it")

	gen, err := evaluator.Evaluate(context.Background(), req, prompt)
	require.NoError(t, err)
	assert.Equal(t, 4, gen.Output.QualityScore)
	assert.Equal(t, "Good focus on the hardest part.", gen.Output.Feedback)
	assert.Equal(t, 512, provider.Calls()[0].Options.MaxTokens)
}

func TestEvaluator_Evaluate_ScoreOutOfSchema(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProviderWithJSON(`{"qualityScore": 7, "feedback": "Nicely executed task.", "encouragement": ""}`)
	evaluator, err := NewEvaluator(provider, discard)
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), EvaluationRequest{}, Prompt{User: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qualityScore")
}
