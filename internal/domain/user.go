package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultDailyTokenBudget is the per-user AI token allowance when none is set.
const DefaultDailyTokenBudget = 50000

// Weekday names accepted for Preferences.WeekStartsOn.
const (
	WeekStartsMonday = "monday"
	WeekStartsSunday = "sunday"
)

// Preferences are the user settings the generation pipeline reads.
type Preferences struct {
	Timezone             string                `json:"timezone"`
	WeekStartsOn         string                `json:"week_starts_on"`
	NotificationChannels []NotificationChannel `json:"notification_channels,omitempty"`
	PreferredTaskTime    string                `json:"preferred_task_time,omitempty"`
}

// DefaultPreferences returns the preferences applied to users who never set
// any.
func DefaultPreferences() Preferences {
	return Preferences{
		Timezone:             "UTC",
		WeekStartsOn:         WeekStartsMonday,
		NotificationChannels: []NotificationChannel{NotificationChannelInApp},
	}
}

// Location resolves the preferred timezone, falling back to UTC when it is
// empty or unknown.
func (p Preferences) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WantsChannel reports whether the user enabled delivery on ch. In-app
// delivery is always on.
func (p Preferences) WantsChannel(ch NotificationChannel) bool {
	if ch == NotificationChannelInApp {
		return true
	}
	for _, c := range p.NotificationChannels {
		if c == ch {
			return true
		}
	}
	return false
}

// User holds the account fields the worker reads and maintains: token budget
// bookkeeping and streak counters.
type User struct {
	ID                uuid.UUID   `json:"id"`
	Email             string      `json:"email"`
	Name              string      `json:"name"`
	Preferences       Preferences `json:"preferences"`
	AITokenBudget     int         `json:"ai_token_budget"`
	AITokensUsedToday int         `json:"ai_tokens_used_today"`
	TokenResetDate    time.Time   `json:"token_reset_date"`
	StreakDays        int         `json:"streak_days"`
	LongestStreak     int         `json:"longest_streak"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TokensUsedOn returns the usage that counts against the budget on day. A
// counter last reset before day is stale and counts as zero.
func (u *User) TokensUsedOn(day time.Time) int {
	if u.TokenResetDate.Before(StartOfDay(day, time.UTC)) {
		return 0
	}
	return u.AITokensUsedToday
}
