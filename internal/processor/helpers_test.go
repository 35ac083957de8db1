package processor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/events"
	"github.com/phrazzld/goalforge/internal/mocks"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/service"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	testDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

const planJSON = `{
  "summary": "Run a half marathon in twelve weeks",
  "approach": "Build aerobic base first, then add tempo and long runs gradually.",
  "estimatedDurationDays": 84,
  "difficultyLevel": "intermediate",
  "milestones": [
    {"title": "Long run of 15km", "targetWeek": 8, "keyActivities": ["long run"]},
    {"title": "Run 5km without stopping", "targetWeek": 2, "keyActivities": ["easy runs"]},
    {"title": "Tempo run at race pace", "targetWeek": 5, "keyActivities": ["tempo"]}
  ],
  "weeklyTimeCommitment": {"minHours": 3, "maxHours": 6}
}`

const tasksJSON = `{
  "tasks": [
    {"title": "Easy 3km run", "description": "Conversational pace", "estimatedMinutes": 30, "priority": "high"},
    {"title": "Stretching routine", "estimatedMinutes": 15, "priority": "low"}
  ],
  "dailyMotivation": "Every run counts."
}`

const mentorJSON = `{
  "message": "You have been steady this week, keep the rhythm going.",
  "tone": "encouraging",
  "actionItems": ["Schedule your long run"]
}`

const evaluationJSON = `{
  "qualityScore": 4,
  "feedback": "Solid session with honest notes.",
  "encouragement": "Keep it up"
}`

// recordingNotifier records the notification IDs it was asked to deliver.
type recordingNotifier struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (r *recordingNotifier) SendNotification(_ context.Context, id uuid.UUID) (*queue.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.ids = append(r.ids, id)
	return &queue.Job{ID: "notify-" + id.String()}, nil
}

func (r *recordingNotifier) IDs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.ids...)
}

// recordingObserver records GenerationFinished calls.
type recordingObserver struct {
	mu     sync.Mutex
	tokens map[string]int
}

func (r *recordingObserver) GenerationFinished(provider, role string, tokens int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens == nil {
		r.tokens = make(map[string]int)
	}
	r.tokens[provider+"/"+role] += tokens
}

func (r *recordingObserver) Tokens(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[key]
}

type fixture struct {
	mem       *mocks.MemoryStores
	planner   *mocks.MockProvider
	tasks     *mocks.MockProvider
	mentor    *mocks.MockProvider
	evaluator *mocks.MockProvider
	recorder  *events.Recorder
	notifier  *recordingNotifier
	observer  *recordingObserver
	proc      *AIJobs
	user      domain.User
	goal      domain.Goal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		mem:       mocks.NewMemoryStores(),
		planner:   mocks.NewMockProviderWithJSON(planJSON),
		tasks:     mocks.NewMockProviderWithJSON(tasksJSON),
		mentor:    mocks.NewMockProviderWithJSON(mentorJSON),
		evaluator: mocks.NewMockProviderWithJSON(evaluationJSON),
		recorder:  &events.Recorder{},
		notifier:  &recordingNotifier{},
		observer:  &recordingObserver{},
	}

	f.user = domain.User{
		ID:             uuid.New(),
		Email:          "ada@example.com",
		Name:           "Ada",
		Preferences:    domain.DefaultPreferences(),
		AITokenBudget:  domain.DefaultDailyTokenBudget,
		TokenResetDate: testDay,
		StreakDays:     4,
	}
	started := testDay.AddDate(0, 0, -10)
	f.goal = domain.Goal{
		ID:               uuid.New(),
		UserID:           f.user.ID,
		Title:            "Run a half marathon",
		Description:      "Finish under two hours",
		Category:         "fitness",
		DailyTimeMinutes: 45,
		Status:           domain.GoalStatusPlanning,
		CreatedAt:        started,
		StartedAt:        &started,
	}
	f.mem.AddUser(f.user)
	f.mem.AddGoal(f.goal)

	planner, err := service.NewPlanner(f.planner, discard)
	require.NoError(t, err)
	taskGen, err := service.NewTaskGenerator(f.tasks, discard)
	require.NoError(t, err)
	mentor, err := service.NewMentor(f.mentor, discard)
	require.NoError(t, err)
	evaluator, err := service.NewEvaluator(f.evaluator, discard)
	require.NoError(t, err)

	emitter := events.NewEmitter(discard)
	emitter.Subscribe(f.recorder)

	f.proc, err = NewAIJobs(AIJobsDeps{
		Tx:        f.mem,
		Stores:    f.mem.Stores(),
		Planner:   planner,
		Mentor:    mentor,
		Evaluator: evaluator,
		Tasks:     taskGen,
		Notifier:  f.notifier,
		Events:    emitter,
		Observer:  f.observer,
		Logger:    discard,
		Now:       func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return f
}

// activate marks the fixture goal active and gives it a plan with
// milestones in weeks 1 and 3.
func (f *fixture) activate() domain.Plan {
	f.goal.Status = domain.GoalStatusActive
	f.mem.AddGoal(f.goal)
	planID := uuid.New()
	plan := domain.Plan{
		ID:      planID,
		GoalID:  f.goal.ID,
		Version: 1,
		Milestones: []domain.Milestone{
			{ID: uuid.New(), PlanID: planID, Title: "Base building", TargetWeek: 1, KeyActivities: []string{"easy runs"}},
			{ID: uuid.New(), PlanID: planID, Title: "First 10km", TargetWeek: 3, KeyActivities: []string{"long run"}},
		},
	}
	f.mem.AddPlan(plan)
	return plan
}

func testJob(id string, attempt int) *queue.Job {
	return &queue.Job{ID: id, Queue: "ai-jobs", Attempt: attempt, MaxAttempts: 3}
}
