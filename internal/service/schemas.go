package service

import "github.com/phrazzld/goalforge/internal/domain"

// Schema names used in validation errors.
const (
	PlannerSchema       = "PlannerOutput"
	MentorSchema        = "MentorOutput"
	EvaluatorSchema     = "EvaluatorOutput"
	TaskGeneratorSchema = "TaskGeneratorOutput"
)

// PlanOutput is the planner's answer.
type PlanOutput struct {
	Summary               string               `json:"summary" validate:"required,min=10,max=500"`
	Approach              string               `json:"approach" validate:"required,min=20,max=2000"`
	EstimatedDurationDays int                  `json:"estimatedDurationDays" validate:"min=1,max=365"`
	DifficultyLevel       string               `json:"difficultyLevel" validate:"required,oneof=beginner intermediate advanced"`
	Milestones            []MilestoneOutput    `json:"milestones" validate:"required,min=1,max=20,dive"`
	WeeklyTimeCommitment  WeeklyTimeCommitment `json:"weeklyTimeCommitment" validate:"required"`
	Prerequisites         []string             `json:"prerequisites,omitempty" validate:"max=10"`
	PotentialChallenges   []string             `json:"potentialChallenges,omitempty" validate:"max=10"`
}

// MilestoneOutput is one milestone of a generated plan.
type MilestoneOutput struct {
	Title         string   `json:"title" validate:"required,min=3,max=200"`
	Description   string   `json:"description,omitempty" validate:"max=1000"`
	TargetWeek    int      `json:"targetWeek" validate:"min=1,max=52"`
	KeyActivities []string `json:"keyActivities" validate:"required,min=1,max=10"`
}

// WeeklyTimeCommitment is the expected weekly effort range in hours.
type WeeklyTimeCommitment struct {
	MinHours float64 `json:"minHours" validate:"min=0.5,max=40"`
	MaxHours float64 `json:"maxHours" validate:"min=0.5,max=40"`
}

// Mentor tones
const (
	ToneEncouraging = "encouraging"
	ToneMotivating  = "motivating"
	ToneChallenging = "challenging"
	ToneSupportive  = "supportive"
)

// MentorOutput is the mentor's answer.
type MentorOutput struct {
	Message               string                 `json:"message" validate:"required,min=10,max=500"`
	Tone                  string                 `json:"tone" validate:"required,oneof=encouraging motivating challenging supportive"`
	ActionItems           []string               `json:"actionItems,omitempty" validate:"max=10"`
	AdjustmentSuggestions []AdjustmentSuggestion `json:"adjustmentSuggestions,omitempty" validate:"max=10,dive"`
}

// AdjustmentSuggestion proposes a change to the plan.
type AdjustmentSuggestion struct {
	Type   string `json:"type" validate:"required,oneof=increase_difficulty decrease_difficulty change_schedule add_break"`
	Reason string `json:"reason" validate:"required"`
}

// EvaluationOutput is the evaluator's answer. QuickEvaluate produces the same
// shape without a model call.
type EvaluationOutput struct {
	QualityScore  int    `json:"qualityScore" validate:"min=1,max=5"`
	Feedback      string `json:"feedback" validate:"required,min=10,max=300"`
	Improvement   string `json:"improvement,omitempty" validate:"max=200"`
	Encouragement string `json:"encouragement" validate:"max=200"`
}

// TasksOutput is the daily task generator's answer.
type TasksOutput struct {
	Tasks           []TaskOutput `json:"tasks" validate:"required,min=1,max=5,dive"`
	DailyMotivation string       `json:"dailyMotivation,omitempty" validate:"max=200"`
}

// TaskOutput is one generated task.
type TaskOutput struct {
	Title            string              `json:"title" validate:"required,min=3,max=200"`
	Description      string              `json:"description,omitempty" validate:"max=1000"`
	Reasoning        string              `json:"reasoning,omitempty" validate:"max=500"`
	EstimatedMinutes int                 `json:"estimatedMinutes" validate:"min=5,max=480"`
	Priority         domain.TaskPriority `json:"priority" validate:"required,oneof=low medium high critical"`
}
