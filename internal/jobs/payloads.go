package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
)

// GeneratePlan asks for a new plan version for a goal.
type GeneratePlan struct {
	UserID uuid.UUID `json:"userId"`
	GoalID uuid.UUID `json:"goalId"`
}

// Validate checks required fields.
func (p GeneratePlan) Validate() error {
	return requireIDs("generatePlan", map[string]uuid.UUID{"userId": p.UserID, "goalId": p.GoalID})
}

// GenerateDailyTasks asks for the tasks of one day.
type GenerateDailyTasks struct {
	UserID uuid.UUID `json:"userId"`
	GoalID uuid.UUID `json:"goalId"`
	// Date is a YYYY-MM-DD calendar day.
	Date string `json:"date"`
}

// Validate checks required fields and the date format.
func (p GenerateDailyTasks) Validate() error {
	if err := requireIDs("generateDailyTasks", map[string]uuid.UUID{"userId": p.UserID, "goalId": p.GoalID}); err != nil {
		return err
	}
	_, err := domain.ParseDate(p.Date)
	return err
}

// Day returns the parsed Date.
func (p GenerateDailyTasks) Day() (time.Time, error) {
	return domain.ParseDate(p.Date)
}

// MentorFeedback asks for feedback on a goal's recent progress.
type MentorFeedback struct {
	UserID uuid.UUID `json:"userId"`
	GoalID uuid.UUID `json:"goalId"`
}

// Validate checks required fields.
func (p MentorFeedback) Validate() error {
	return requireIDs("mentorFeedback", map[string]uuid.UUID{"userId": p.UserID, "goalId": p.GoalID})
}

// EvaluateTask asks for a quality score on a finished task instance.
type EvaluateTask struct {
	UserID         uuid.UUID `json:"userId"`
	TaskInstanceID uuid.UUID `json:"taskInstanceId"`
}

// Validate checks required fields.
func (p EvaluateTask) Validate() error {
	return requireIDs("evaluateTask", map[string]uuid.UUID{"userId": p.UserID, "taskInstanceId": p.TaskInstanceID})
}

// Maintenance is the payload shared by the date-driven maintenance jobs.
// An empty Date means the day the job runs.
type Maintenance struct {
	Date string `json:"date,omitempty"`
}

// Validate checks the optional date.
func (p Maintenance) Validate() error {
	if p.Date == "" {
		return nil
	}
	_, err := domain.ParseDate(p.Date)
	return err
}

// Day resolves the target day, defaulting to the UTC day of now.
func (p Maintenance) Day(now time.Time) (time.Time, error) {
	if p.Date == "" {
		return domain.StartOfDay(now, time.UTC), nil
	}
	return domain.ParseDate(p.Date)
}

// Cleanup targets
const (
	CleanupInteractions  = "old_interactions"
	CleanupNotifications = "old_notifications"
)

// DefaultCleanupDays is the age cutoff used when DaysOld is zero.
const DefaultCleanupDays = 30

// CleanupOldData deletes aged records of one kind.
type CleanupOldData struct {
	Type    string `json:"type"`
	DaysOld int    `json:"daysOld,omitempty"`
}

// Validate checks the cleanup type and age.
func (p CleanupOldData) Validate() error {
	switch p.Type {
	case CleanupInteractions, CleanupNotifications:
	default:
		return fmt.Errorf("%w: cleanupOldData type %q", domain.ErrValidation, p.Type)
	}
	if p.DaysOld < 0 {
		return fmt.Errorf("%w: cleanupOldData daysOld %d", domain.ErrValidation, p.DaysOld)
	}
	return nil
}

// Cutoff returns the creation time before which records are deleted.
func (p CleanupOldData) Cutoff(now time.Time) time.Time {
	days := p.DaysOld
	if days == 0 {
		days = DefaultCleanupDays
	}
	return now.AddDate(0, 0, -days)
}

// SendNotification delivers a persisted notification on its channel.
type SendNotification struct {
	NotificationID uuid.UUID `json:"notificationId"`
}

// Validate checks required fields.
func (p SendNotification) Validate() error {
	return requireIDs("send", map[string]uuid.UUID{"notificationId": p.NotificationID})
}

func requireIDs(job string, ids map[string]uuid.UUID) error {
	for name, id := range ids {
		if id == uuid.Nil {
			return fmt.Errorf("%w: %s payload missing %s", domain.ErrInvalidID, job, name)
		}
	}
	return nil
}
