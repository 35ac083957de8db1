package prompts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlanner(t *testing.T) {
	t.Parallel()

	got, err := BuildPlanner(PlannerParams{
		GoalTitle:    "Run a marathon",
		Category:     "fitness",
		TargetDate:   "2026-12-01",
		DurationDays: 120,
		Timezone:     "Europe/Berlin",
		WeekStartsOn: "monday",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "- Title: Run a marathon")
	assert.Contains(t, got, "- Description: Not provided")
	assert.Contains(t, got, "- Days available: 120")
	assert.Contains(t, got, "- Timezone: Europe/Berlin")
	assert.NotContains(t, got, "{{")
	assert.NotContains(t, got, "&#34;", "templates must not be HTML escaped")

	got, err = BuildPlanner(PlannerParams{GoalTitle: "Learn piano"})
	require.NoError(t, err)
	assert.Contains(t, got, "- Target date: Flexible")
	assert.Contains(t, got, "- Days available: Not specified")
}

func TestBuildMentor(t *testing.T) {
	t.Parallel()

	done := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	got, err := BuildMentor(MentorParams{
		GoalTitle:      "Learn Go",
		StreakDays:     5,
		CompletionRate: 66.666,
		RecentTasks: []RecentTask{
			{Title: "Read chapter 1", Status: "completed", CompletedAt: &done},
			{Title: "Exercises", Status: "missed"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, got, "Recent completion rate: 66.7%")
	assert.Contains(t, got, `"title": "Read chapter 1"`)
	assert.Contains(t, got, `"completedAt": null`)
	assert.Contains(t, got, "None provided")
}

func TestBuildEvaluator(t *testing.T) {
	t.Parallel()

	got, err := BuildEvaluator(EvaluatorParams{
		TaskTitle:       "Write tests",
		ExpectedMinutes: 30,
		ActualMinutes:   45,
		UserNotes:       "Harder than expected",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "- Expected time: 30 minutes")
	assert.Contains(t, got, "- Actual time: 45 minutes")
	assert.Contains(t, got, "Harder than expected")
}

func TestBuildTaskGenerator(t *testing.T) {
	t.Parallel()

	got, err := BuildTaskGenerator(TaskGeneratorParams{
		GoalTitle:      "Learn Go",
		MilestoneTitle: "Concurrency",
		TargetWeek:     3,
		KeyActivities:  []string{"goroutines", "channels"},
		DayOfPlan:      15,
		CompletionRate: 70,
		StreakDays:     2,
		Date:           time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, got, "- Key activities: goroutines, channels")
	assert.Contains(t, got, "- Day 15 of the plan")
	assert.Contains(t, got, "- Recent completion rate: 70%")
	assert.Contains(t, got, "- Date: 2026-03-07")
	assert.Contains(t, got, "- Weekday: Saturday")
}
