package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
)

type pushMessage struct {
	NotificationID uuid.UUID               `json:"notificationId"`
	UserID         uuid.UUID               `json:"userId"`
	Type           domain.NotificationType `json:"type"`
	Title          string                  `json:"title"`
	Body           string                  `json:"body"`
	Data           json.RawMessage         `json:"data,omitempty"`
}

// WebhookPushSender hands push notifications to the push gateway webhook.
type WebhookPushSender struct {
	client    *http.Client
	url       string
	authToken string
	logger    *slog.Logger
}

var _ Sender = (*WebhookPushSender)(nil)

// NewWebhookPushSender creates a push sender. A nil client gets one with the
// configured timeout.
func NewWebhookPushSender(cfg config.PushConfig, client *http.Client, logger *slog.Logger) (*WebhookPushSender, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.WebhookURL == "" {
		return nil, errors.New("push webhook url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &WebhookPushSender{
		client:    client,
		url:       cfg.WebhookURL,
		authToken: cfg.AuthToken,
		logger:    logger.With("component", "push_sender"),
	}, nil
}

// Channel implements Sender.
func (s *WebhookPushSender) Channel() domain.NotificationChannel {
	return domain.NotificationChannelPush
}

// Send implements Sender.
func (s *WebhookPushSender) Send(ctx context.Context, n *domain.Notification, user *domain.User) error {
	body, err := json.Marshal(pushMessage{
		NotificationID: n.ID,
		UserID:         user.ID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Data:           n.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	if err := do(s.client, req); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "push sent", "notification_id", n.ID, "user_id", user.ID)
	return nil
}
