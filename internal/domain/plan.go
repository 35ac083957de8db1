package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Difficulty levels a plan can be pitched at.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Plan is one generated version of the roadmap for a goal. Each successful
// generation creates a new version; earlier versions are kept.
type Plan struct {
	ID                    uuid.UUID   `json:"id"`
	GoalID                uuid.UUID   `json:"goal_id"`
	Version               int         `json:"version"`
	Summary               string      `json:"summary"`
	Approach              string      `json:"approach"`
	EstimatedDurationDays int         `json:"estimated_duration_days"`
	DifficultyLevel       string      `json:"difficulty_level"`
	WeeklyHoursMin        float64     `json:"weekly_hours_min"`
	WeeklyHoursMax        float64     `json:"weekly_hours_max"`
	Prerequisites         []string    `json:"prerequisites,omitempty"`
	PotentialChallenges   []string    `json:"potential_challenges,omitempty"`
	InteractionID         *uuid.UUID  `json:"interaction_id,omitempty"`
	Milestones            []Milestone `json:"milestones"`
	CreatedAt             time.Time   `json:"created_at"`
}

// Milestone is a checkpoint inside a plan, due by TargetWeek.
type Milestone struct {
	ID            uuid.UUID `json:"id"`
	PlanID        uuid.UUID `json:"plan_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	TargetWeek    int       `json:"target_week"`
	KeyActivities []string  `json:"key_activities"`
	Order         int       `json:"order"`
}

// SortMilestones orders milestones by ascending TargetWeek, keeping the
// relative order of equal weeks, and renumbers Order from 0.
func SortMilestones(ms []Milestone) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].TargetWeek < ms[j].TargetWeek
	})
	for i := range ms {
		ms[i].Order = i
	}
}

// MilestoneForWeek picks the milestone to work on during week: the one
// targeting that week, else the next one ahead, else the last one.
// Milestones must already be sorted.
func (p *Plan) MilestoneForWeek(week int) (*Milestone, error) {
	if len(p.Milestones) == 0 {
		return nil, ErrNoMilestones
	}
	for i := range p.Milestones {
		if p.Milestones[i].TargetWeek == week {
			return &p.Milestones[i], nil
		}
	}
	for i := range p.Milestones {
		if p.Milestones[i].TargetWeek > week {
			return &p.Milestones[i], nil
		}
	}
	return &p.Milestones[len(p.Milestones)-1], nil
}
