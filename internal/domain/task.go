package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskPriority ranks generated tasks.
type TaskPriority string

// Possible task priorities
const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityMedium   TaskPriority = "medium"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

// TaskInstanceStatus is the state of one dated occurrence of a task.
type TaskInstanceStatus string

// Possible task instance states
const (
	TaskStatusPending    TaskInstanceStatus = "pending"
	TaskStatusInProgress TaskInstanceStatus = "in_progress"
	TaskStatusCompleted  TaskInstanceStatus = "completed"
	TaskStatusSkipped    TaskInstanceStatus = "skipped"
	TaskStatusMissed     TaskInstanceStatus = "missed"
)

// Terminal reports whether no further transition is expected.
func (s TaskInstanceStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusSkipped || s == TaskStatusMissed
}

// Task is a template produced by the task generator.
type Task struct {
	ID               uuid.UUID    `json:"id"`
	GoalID           uuid.UUID    `json:"goal_id"`
	MilestoneID      *uuid.UUID   `json:"milestone_id,omitempty"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Reasoning        string       `json:"reasoning,omitempty"`
	EstimatedMinutes int          `json:"estimated_minutes"`
	Priority         TaskPriority `json:"priority"`
	InteractionID    *uuid.UUID   `json:"interaction_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// TaskInstance is a task scheduled on one date.
type TaskInstance struct {
	ID              uuid.UUID          `json:"id"`
	TaskID          uuid.UUID          `json:"task_id"`
	GoalID          uuid.UUID          `json:"goal_id"`
	UserID          uuid.UUID          `json:"user_id"`
	ScheduledDate   time.Time          `json:"scheduled_date"`
	Status          TaskInstanceStatus `json:"status"`
	DailyMotivation string             `json:"daily_motivation,omitempty"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	ActualMinutes   *int               `json:"actual_minutes,omitempty"`
	UserNotes       string             `json:"user_notes,omitempty"`
	QualityScore    *int               `json:"quality_score,omitempty"`
	AIFeedback      string             `json:"ai_feedback,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`

	// Task is populated by stores that join the template.
	Task *Task `json:"task,omitempty"`
}

// DefaultCompletionRate is assumed when there is no history to measure.
const DefaultCompletionRate = 70

// CompletionRate returns the share of instances completed, as a percentage.
// ok is false for an empty slice.
func CompletionRate(instances []TaskInstance) (rate float64, ok bool) {
	if len(instances) == 0 {
		return 0, false
	}
	completed := 0
	for _, in := range instances {
		if in.Status == TaskStatusCompleted {
			completed++
		}
	}
	return float64(completed*100) / float64(len(instances)), true
}

// CompletionRateOrDefault is CompletionRate with DefaultCompletionRate for
// an empty history.
func CompletionRateOrDefault(instances []TaskInstance) float64 {
	if rate, ok := CompletionRate(instances); ok {
		return rate
	}
	return DefaultCompletionRate
}
