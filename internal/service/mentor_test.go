package service

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/goalforge/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustTone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		tone     string
		streak   int
		rate     float64
		wantTone string
	}{
		{name: "challenging softened at low completion", tone: ToneChallenging, streak: 3, rate: 29, wantTone: ToneSupportive},
		{name: "challenging kept at 30 percent", tone: ToneChallenging, streak: 3, rate: 30, wantTone: ToneChallenging},
		{name: "supportive raised for strong streak", tone: ToneSupportive, streak: 15, rate: 95, wantTone: ToneMotivating},
		{name: "supportive kept at streak 14", tone: ToneSupportive, streak: 14, rate: 95, wantTone: ToneSupportive},
		{name: "supportive kept at 90 percent", tone: ToneSupportive, streak: 20, rate: 90, wantTone: ToneSupportive},
		{name: "encouraging untouched", tone: ToneEncouraging, streak: 30, rate: 10, wantTone: ToneEncouraging},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fb := MentorOutput{Tone: tt.tone}
			adjustTone(&fb, tt.streak, tt.rate)
			assert.Equal(t, tt.wantTone, fb.Tone)
		})
	}
}

func TestMentor_GenerateFeedback(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProviderWithJSON(`{
		"message": "You have been steady this week, keep the rhythm going.",
		"tone": "challenging",
		"actionItems": ["a", "b", "c", "d", "e"],
		"adjustmentSuggestions": [{"type": "decrease_difficulty", "reason": "low completion"}]
	}`)
	mentor, err := NewMentor(provider, discard)
	require.NoError(t, err)

	done := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	req := MentorRequest{
		GoalTitle:      "Learn Spanish",
		StreakDays:     2,
		CompletionRate: 20,
		RecentTasks: []RecentTask{
			{Title: "Vocabulary drills", Status: "completed", CompletedAt: &done},
			{Title: "Podcast", Status: "missed"},
		},
	}
	prompt, err := mentor.Prompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt.User, "Vocabulary drills")
	assert.Contains(t, prompt.User, "20.0%")

	gen, err := mentor.GenerateFeedback(context.Background(), req, prompt)
	require.NoError(t, err)

	assert.Equal(t, ToneSupportive, gen.Output.Tone)
	assert.Equal(t, []string{"a", "b", "c"}, gen.Output.ActionItems)
	require.Len(t, gen.Output.AdjustmentSuggestions, 1)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1024, calls[0].Options.MaxTokens)
	assert.Equal(t, "mentor.v1", mentor.PromptVersion())
}

func TestMentor_GenerateFeedback_RejectsUnknownTone(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProviderWithJSON(`{"message": "Nice job this week, truly.", "tone": "sarcastic"}`)
	mentor, err := NewMentor(provider, discard)
	require.NoError(t, err)

	_, err = mentor.GenerateFeedback(context.Background(), MentorRequest{}, Prompt{User: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tone")
}
