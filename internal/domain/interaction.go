package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AIRole names the generation role that produced an interaction.
type AIRole string

// Generation roles
const (
	AIRolePlanner       AIRole = "planner"
	AIRoleMentor        AIRole = "mentor"
	AIRoleEvaluator     AIRole = "evaluator"
	AIRoleTaskGenerator AIRole = "task-generator"
)

// InteractionStatus is the lifecycle state of an AIInteraction.
type InteractionStatus string

// Possible interaction states
const (
	InteractionPending    InteractionStatus = "pending"
	InteractionProcessing InteractionStatus = "processing"
	InteractionCompleted  InteractionStatus = "completed"
	InteractionFailed     InteractionStatus = "failed"
	InteractionRetrying   InteractionStatus = "retrying"
)

// Closed reports whether the interaction reached a final state.
func (s InteractionStatus) Closed() bool {
	return s == InteractionCompleted || s == InteractionFailed
}

// AIInteraction records one generation attempt: who asked, which provider
// and prompt version answered, and what it cost.
type AIInteraction struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	GoalID        *uuid.UUID        `json:"goal_id,omitempty"`
	Role          AIRole            `json:"role"`
	Provider      string            `json:"provider"`
	PromptVersion string            `json:"prompt_version"`
	JobKey        string            `json:"job_key"`
	JobRun        string            `json:"job_run,omitempty"`
	Attempt       int               `json:"attempt"`
	Status        InteractionStatus `json:"status"`
	InputTokens   int               `json:"input_tokens"`
	OutputTokens  int               `json:"output_tokens"`
	LatencyMs     int64             `json:"latency_ms"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	RetryCount    int               `json:"retry_count"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// NewAIInteraction opens an interaction in the processing state.
func NewAIInteraction(userID uuid.UUID, goalID *uuid.UUID, role AIRole, provider, promptVersion, jobKey string, attempt int) *AIInteraction {
	if attempt < 1 {
		attempt = 1
	}
	return &AIInteraction{
		ID:            uuid.New(),
		UserID:        userID,
		GoalID:        goalID,
		Role:          role,
		Provider:      provider,
		PromptVersion: promptVersion,
		JobKey:        jobKey,
		Attempt:       attempt,
		Status:        InteractionProcessing,
		RetryCount:    attempt - 1,
		CreatedAt:     time.Now().UTC(),
	}
}

// TotalTokens is InputTokens + OutputTokens.
func (i *AIInteraction) TotalTokens() int {
	return i.InputTokens + i.OutputTokens
}

// Complete closes the interaction successfully.
func (i *AIInteraction) Complete(input, output int, latency time.Duration, at time.Time) error {
	if i.Status.Closed() {
		return fmt.Errorf("%w: %s is %s", ErrInteractionClosed, i.ID, i.Status)
	}
	i.Status = InteractionCompleted
	i.InputTokens = input
	i.OutputTokens = output
	i.LatencyMs = latency.Milliseconds()
	i.ErrorMessage = ""
	i.CompletedAt = &at
	return nil
}

// Fail closes the interaction with the captured error message.
func (i *AIInteraction) Fail(msg string, at time.Time) error {
	if i.Status.Closed() {
		return fmt.Errorf("%w: %s is %s", ErrInteractionClosed, i.ID, i.Status)
	}
	i.Status = InteractionFailed
	i.ErrorMessage = msg
	i.CompletedAt = &at
	return nil
}

// AIOutput is the immutable record of what a provider returned, kept for
// forensic replay even when later steps fail.
type AIOutput struct {
	ID              uuid.UUID       `json:"id"`
	InteractionID   uuid.UUID       `json:"interaction_id"`
	OutputType      string          `json:"output_type"`
	RawOutput       string          `json:"raw_output"`
	ValidatedOutput json.RawMessage `json:"validated_output,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
