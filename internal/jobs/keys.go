package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
)

// PlanKey identifies the plan generation job of a goal.
func PlanKey(goalID uuid.UUID) string {
	return "plan-" + goalID.String()
}

// TasksKey identifies the task generation job of a goal for one day.
func TasksKey(goalID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("tasks-%s-%s", goalID, domain.FormatDate(day))
}

// WeeklyMentorKey identifies the scheduled mentor feedback of a goal for the
// ISO week containing day.
func WeeklyMentorKey(goalID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("mentor-%s-%s", goalID, domain.ISOWeekKey(day))
}

// MentorKey identifies an on-demand mentor request.
func MentorKey(goalID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("mentor-%s-%d", goalID, at.UnixMilli())
}

// EvaluateKey identifies the evaluation job of a task instance.
func EvaluateKey(taskInstanceID uuid.UUID) string {
	return "evaluate-" + taskInstanceID.String()
}

// NotifyKey identifies the delivery job of a notification.
func NotifyKey(notificationID uuid.UUID) string {
	return "notify-" + notificationID.String()
}

// MaintenanceKey identifies one scheduled run of a maintenance job, so
// several schedulers firing for the same minute enqueue it once.
func MaintenanceKey(name string, at time.Time) string {
	return fmt.Sprintf("%s-%s", name, at.UTC().Format("2006-01-02T15:04"))
}
