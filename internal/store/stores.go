package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
)

// UserStore covers the user fields the worker maintains: token budget
// bookkeeping and streak counters.
type UserStore interface {
	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// AddTokenUsage atomically adds tokens to the user's daily counter for
	// day, resetting a stale counter first. The counter saturates at the
	// user's budget. It returns the counter value after the update.
	AddTokenUsage(ctx context.Context, id uuid.UUID, tokens int, day time.Time) (int, error)

	// ResetDailyTokens zeroes the counter of every user whose reset date is
	// before day and advances the reset date to day.
	ResetDailyTokens(ctx context.Context, day time.Time) (int64, error)

	// ResetStreak sets streak_days to zero. longest_streak is untouched.
	ResetStreak(ctx context.Context, id uuid.UUID) error
}

// GoalStore reads goals and moves them between statuses.
type GoalStore interface {
	// GetByID retrieves a goal by ID.
	// Returns ErrGoalNotFound if the goal does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error)

	// UpdateStatus sets the goal status. Moving to active also stamps
	// started_at when it is still empty.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GoalStatus) error

	// ListActive returns every goal in the active status.
	ListActive(ctx context.Context) ([]domain.Goal, error)

	// ListActiveWithActivitySince returns active goals having at least one
	// task instance scheduled on or after since.
	ListActiveWithActivitySince(ctx context.Context, since time.Time) ([]domain.Goal, error)
}

// PlanStore persists versioned plans with their milestones.
type PlanStore interface {
	// LatestVersion returns the highest plan version for the goal, or 0.
	LatestVersion(ctx context.Context, goalID uuid.UUID) (int, error)

	// GetCurrent returns the highest version plan with milestones ordered by
	// target week. Returns ErrPlanNotFound when the goal has no plan.
	GetCurrent(ctx context.Context, goalID uuid.UUID) (*domain.Plan, error)

	// Create stores the plan and its milestones. Returns
	// ErrPlanVersionExists if the version is already taken.
	Create(ctx context.Context, plan *domain.Plan) error
}

// DailyCompletion is one user's task tally for a single day.
type DailyCompletion struct {
	UserID    uuid.UUID
	Total     int
	Completed int
}

// TaskStore persists generated tasks and their dated instances.
type TaskStore interface {
	// CreateBatch stores task templates and their instances together.
	CreateBatch(ctx context.Context, tasks []domain.Task, instances []domain.TaskInstance) error

	// GetInstance loads an instance with its task template.
	// Returns ErrTaskInstanceNotFound if it does not exist.
	GetInstance(ctx context.Context, id uuid.UUID) (*domain.TaskInstance, error)

	// CountInstancesOn counts the goal's instances scheduled on day.
	CountInstancesOn(ctx context.Context, goalID uuid.UUID, day time.Time) (int, error)

	// ListInstancesBetween returns the goal's instances scheduled in
	// [from, to], oldest first.
	ListInstancesBetween(ctx context.Context, goalID uuid.UUID, from, to time.Time) ([]domain.TaskInstance, error)

	// RecentInstances returns the goal's latest instances by scheduled date,
	// newest first.
	RecentInstances(ctx context.Context, goalID uuid.UUID, limit int) ([]domain.TaskInstance, error)

	// SaveEvaluation writes a quality score and feedback onto an instance.
	SaveEvaluation(ctx context.Context, id uuid.UUID, score int, feedback string) error

	// MarkMissed flips pending instances scheduled on or before day to
	// missed. Other statuses are never touched.
	MarkMissed(ctx context.Context, day time.Time) (int64, error)

	// DailyCompletionByUser tallies instances scheduled on day per user.
	DailyCompletionByUser(ctx context.Context, day time.Time) ([]DailyCompletion, error)
}

// InteractionStore persists AI provenance records.
type InteractionStore interface {
	// Create inserts a new interaction.
	// Returns ErrInteractionExists for a repeated (job key, job run, attempt).
	Create(ctx context.Context, interaction *domain.AIInteraction) error

	// ListByJobKey returns every interaction recorded for a job key across
	// all of its runs.
	ListByJobKey(ctx context.Context, jobKey string) ([]domain.AIInteraction, error)

	// Close persists a completed or failed interaction. It fails with
	// domain.ErrInteractionClosed when the stored row is already closed.
	Close(ctx context.Context, interaction *domain.AIInteraction) error

	// SaveOutput stores the raw and validated provider output.
	SaveOutput(ctx context.Context, output *domain.AIOutput) error

	// DeleteClosedBefore removes completed and failed interactions, with
	// their outputs, created before cutoff.
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationStore persists notifications and their delivery state.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error

	// GetByID returns ErrNotificationNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)

	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// DeleteDeliveredBefore removes sent and read notifications created
	// before cutoff.
	DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stores bundles every store so a unit of work can be handed one value.
type Stores struct {
	Users         UserStore
	Goals         GoalStore
	Plans         PlanStore
	Tasks         TaskStore
	Interactions  InteractionStore
	Notifications NotificationStore
}

// Transactor runs fn with stores bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
