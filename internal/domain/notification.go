package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies what a notification is about.
type NotificationType string

// Notification types
const (
	NotificationMentorMessage NotificationType = "mentor_message"
	NotificationPlanReady     NotificationType = "plan_ready"
	NotificationTaskReminder  NotificationType = "task_reminder"
	NotificationStreakUpdate  NotificationType = "streak_update"
)

// NotificationChannel is how a notification reaches the user.
type NotificationChannel string

// Delivery channels
const (
	NotificationChannelInApp NotificationChannel = "in_app"
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelPush  NotificationChannel = "push"
)

// NotificationStatus tracks delivery.
type NotificationStatus string

// Delivery states
const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationRead    NotificationStatus = "read"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a message for a user on one channel.
type Notification struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"user_id"`
	Type         NotificationType    `json:"type"`
	Channel      NotificationChannel `json:"channel"`
	Status       NotificationStatus  `json:"status"`
	Title        string              `json:"title"`
	Body         string              `json:"body"`
	Data         json.RawMessage     `json:"data,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	SentAt       *time.Time          `json:"sent_at,omitempty"`
	ReadAt       *time.Time          `json:"read_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NewNotification builds a pending notification. In-app notifications are
// delivered by being stored, so they start out sent.
func NewNotification(userID uuid.UUID, typ NotificationType, ch NotificationChannel, title, body string, data json.RawMessage) *Notification {
	now := time.Now().UTC()
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Channel:   ch,
		Status:    NotificationPending,
		Title:     title,
		Body:      body,
		Data:      data,
		CreatedAt: now,
	}
	if ch == NotificationChannelInApp {
		n.Status = NotificationSent
		n.SentAt = &now
	}
	return n
}
