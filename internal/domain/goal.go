package domain

import (
	"time"

	"github.com/google/uuid"
)

// GoalStatus represents where a goal is in its lifecycle.
type GoalStatus string

// Possible goal status values
const (
	GoalStatusDraft     GoalStatus = "draft"
	GoalStatusPlanning  GoalStatus = "planning"
	GoalStatusActive    GoalStatus = "active"
	GoalStatusPaused    GoalStatus = "paused"
	GoalStatusCompleted GoalStatus = "completed"
	GoalStatusAbandoned GoalStatus = "abandoned"
)

// Valid reports whether s is a known goal status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalStatusDraft, GoalStatusPlanning, GoalStatusActive,
		GoalStatusPaused, GoalStatusCompleted, GoalStatusAbandoned:
		return true
	}
	return false
}

// Goal is what the user is working toward.
type Goal struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	TargetDate       *time.Time `json:"target_date,omitempty"`
	DailyTimeMinutes int        `json:"daily_time_minutes"`
	Status           GoalStatus `json:"status"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StartDate is when work on the goal began: StartedAt when set, otherwise
// creation time.
func (g *Goal) StartDate() time.Time {
	if g.StartedAt != nil {
		return *g.StartedAt
	}
	return g.CreatedAt
}

// CurrentWeek is the 1-based plan week containing day.
func (g *Goal) CurrentWeek(day time.Time) int {
	days := DaysBetween(g.StartDate(), day)
	if days < 0 {
		days = 0
	}
	return days/7 + 1
}

// DaysRemaining returns whole days from now until TargetDate, or nil when the
// goal has no target date.
func (g *Goal) DaysRemaining(now time.Time) *int {
	if g.TargetDate == nil {
		return nil
	}
	d := DaysBetween(now, *g.TargetDate)
	return &d
}
