package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/config"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testNotification(ch domain.NotificationChannel) (*domain.Notification, *domain.User) {
	user := &domain.User{ID: uuid.New(), Email: "ada@example.com", Name: "Ada"}
	n := domain.NewNotification(user.ID, domain.NotificationMentorMessage, ch,
		"Your AI Mentor has feedback", "Keep going", json.RawMessage(`{"goalId":"g"}`))
	return n, user
}

func TestSendGridSender_Send(t *testing.T) {
	t.Parallel()

	var got sgMail
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := NewSendGridSender(config.EmailConfig{
		APIKey:    "sg-key",
		BaseURL:   srv.URL + "/",
		FromEmail: "mentor@goalforge.test",
		FromName:  "Goalforge",
		Timeout:   time.Second,
	}, nil, discard)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationChannelEmail, sender.Channel())

	n, user := testNotification(domain.NotificationChannelEmail)
	require.NoError(t, sender.Send(context.Background(), n, user))

	assert.Equal(t, "Bearer sg-key", auth)
	assert.Equal(t, "Your AI Mentor has feedback", got.Subject)
	assert.Equal(t, "mentor@goalforge.test", got.From.Email)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, "ada@example.com", got.Personalizations[0].To[0].Email)
	require.Len(t, got.Content, 1)
	assert.Equal(t, "Keep going", got.Content[0].Value)
}

func TestSendGridSender_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "bad request is rejected", status: http.StatusBadRequest, want: ErrRejected},
		{name: "unauthorized is rejected", status: http.StatusUnauthorized, want: ErrRejected},
		{name: "rate limited is unavailable", status: http.StatusTooManyRequests, want: ErrUnavailable},
		{name: "server error is unavailable", status: http.StatusBadGateway, want: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			sender, err := NewSendGridSender(config.EmailConfig{APIKey: "k", BaseURL: srv.URL, FromEmail: "a@b.c"}, srv.Client(), discard)
			require.NoError(t, err)

			n, user := testNotification(domain.NotificationChannelEmail)
			err = sender.Send(context.Background(), n, user)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestSendGridSender_MissingEmail(t *testing.T) {
	t.Parallel()

	sender, err := NewSendGridSender(config.EmailConfig{APIKey: "k", FromEmail: "a@b.c"}, nil, discard)
	require.NoError(t, err)

	n, user := testNotification(domain.NotificationChannelEmail)
	user.Email = ""
	assert.ErrorIs(t, sender.Send(context.Background(), n, user), ErrRejected)
}

func TestNewSenders_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSendGridSender(config.EmailConfig{FromEmail: "a@b.c"}, nil, discard)
	assert.Error(t, err)
	_, err = NewSendGridSender(config.EmailConfig{APIKey: "k", FromEmail: "a@b.c"}, nil, nil)
	assert.Error(t, err)
	_, err = NewWebhookPushSender(config.PushConfig{}, nil, discard)
	assert.Error(t, err)
}

func TestWebhookPushSender_Send(t *testing.T) {
	t.Parallel()

	var got pushMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender, err := NewWebhookPushSender(config.PushConfig{WebhookURL: srv.URL, AuthToken: "push-token"}, srv.Client(), discard)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationChannelPush, sender.Channel())

	n, user := testNotification(domain.NotificationChannelPush)
	require.NoError(t, sender.Send(context.Background(), n, user))

	assert.Equal(t, "Bearer push-token", auth)
	assert.Equal(t, n.ID, got.NotificationID)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, domain.NotificationMentorMessage, got.Type)
	assert.JSONEq(t, `{"goalId":"g"}`, string(got.Data))
}

func TestWebhookPushSender_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	sender, err := NewWebhookPushSender(config.PushConfig{WebhookURL: url, Timeout: time.Second}, nil, discard)
	require.NoError(t, err)

	n, user := testNotification(domain.NotificationChannelPush)
	assert.ErrorIs(t, sender.Send(context.Background(), n, user), ErrUnavailable)
}
