package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
)

// DefaultSendGridURL is the SendGrid API base URL.
const DefaultSendGridURL = "https://api.sendgrid.com"

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// SendGridSender sends email notifications through SendGrid.
type SendGridSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    sgAddress
	logger  *slog.Logger
}

var _ Sender = (*SendGridSender)(nil)

// NewSendGridSender creates an email sender. A nil client gets one with the
// configured timeout.
func NewSendGridSender(cfg config.EmailConfig, client *http.Client, logger *slog.Logger) (*SendGridSender, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("sendgrid api key and from email are required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultSendGridURL
	}
	return &SendGridSender{
		client:  client,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		from:    sgAddress{Email: cfg.FromEmail, Name: cfg.FromName},
		logger:  logger.With("component", "sendgrid_sender"),
	}, nil
}

// Channel implements Sender.
func (s *SendGridSender) Channel() domain.NotificationChannel {
	return domain.NotificationChannelEmail
}

// Send implements Sender.
func (s *SendGridSender) Send(ctx context.Context, n *domain.Notification, user *domain.User) error {
	if user.Email == "" {
		return fmt.Errorf("%w: user %s has no email address", ErrRejected, user.ID)
	}

	mail := sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: user.Email, Name: user.Name}}}},
		From:             s.from,
		Subject:          n.Title,
		Content:          []sgContent{{Type: "text/plain", Value: n.Body}},
	}
	body, err := json.Marshal(mail)
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	if err := do(s.client, req); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "email sent", "notification_id", n.ID, "user_id", user.ID)
	return nil
}
