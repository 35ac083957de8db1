package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event.
type Type string

// Event types
const (
	TypePlanGenerated  Type = "plan.generated"
	TypeTasksGenerated Type = "tasks.generated"
	TypeMentorFeedback Type = "mentor.feedback"
	TypeTaskEvaluated  Type = "task.evaluated"
	TypeJobFailed      Type = "job.failed"
)

// Event is one published occurrence.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	Type Type `json:"type"`

	// UserID is the user the event concerns. It is uuid.Nil for system
	// events that cannot be attributed.
	UserID uuid.UUID `json:"userId"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"createdAt"`
}

// New creates an event, encoding payload as JSON.
func New(typ Type, userID uuid.UUID, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", typ, err)
	}

	return &Event{
		ID:        uuid.New(),
		Type:      typ,
		UserID:    userID,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// PlanGenerated is the payload of TypePlanGenerated.
type PlanGenerated struct {
	GoalID         uuid.UUID `json:"goalId"`
	PlanID         uuid.UUID `json:"planId"`
	Version        int       `json:"version"`
	MilestoneCount int       `json:"milestoneCount"`
}

// TasksGenerated is the payload of TypeTasksGenerated.
type TasksGenerated struct {
	GoalID uuid.UUID `json:"goalId"`
	Date   string    `json:"date"`
	Count  int       `json:"count"`
}

// MentorFeedback is the payload of TypeMentorFeedback.
type MentorFeedback struct {
	GoalID         uuid.UUID `json:"goalId"`
	NotificationID uuid.UUID `json:"notificationId"`
	Tone           string    `json:"tone"`
}

// TaskEvaluated is the payload of TypeTaskEvaluated.
type TaskEvaluated struct {
	TaskInstanceID uuid.UUID `json:"taskInstanceId"`
	QualityScore   int       `json:"qualityScore"`
	Quick          bool      `json:"quick"`
}

// JobFailed is the payload of TypeJobFailed. Final is set when the job was
// moved to the dead-letter set and will not run again on its own.
type JobFailed struct {
	Queue       string `json:"queue"`
	Job         string `json:"job"`
	JobID       string `json:"jobId"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
	Error       string `json:"error"`
	Final       bool   `json:"final"`
}

// Handler consumes events.
type Handler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Publisher delivers events to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Emit builds an event and publishes it.
func Emit(ctx context.Context, p Publisher, typ Type, userID uuid.UUID, payload any) error {
	event, err := New(typ, userID, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, event)
}
