package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/jobs"
	"github.com/phrazzld/goalforge/internal/notify"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/redact"
	"github.com/phrazzld/goalforge/internal/store"
)

// Notifications handles the notifications queue.
type Notifications struct {
	stores  store.Stores
	senders map[domain.NotificationChannel]notify.Sender
	logger  *slog.Logger
	now     func() time.Time
}

var _ jobs.NotificationVisitor = (*Notifications)(nil)

// NewNotifications creates the notification processor. Channels without a
// sender fail their notifications permanently.
func NewNotifications(stores store.Stores, logger *slog.Logger, senders ...notify.Sender) (*Notifications, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	byChannel := make(map[domain.NotificationChannel]notify.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Notifications{
		stores:  stores,
		senders: byChannel,
		logger:  logger.With("component", "notifications"),
		now:     time.Now,
	}, nil
}

// Send delivers one notification and records the result on it. A failed
// attempt marks it failed; a later successful retry marks it sent again.
func (p *Notifications) Send(ctx context.Context, payload jobs.SendNotification) error {
	log := logger.FromContextOrDefault(ctx, p.logger).With("notification_id", payload.NotificationID)

	n, err := p.stores.Notifications.GetByID(ctx, payload.NotificationID)
	if err != nil {
		return loadError("notification", err)
	}
	if n.Status == domain.NotificationSent || n.Status == domain.NotificationRead {
		log.InfoContext(ctx, "notification already delivered")
		return nil
	}
	if n.Channel == domain.NotificationChannelInApp {
		return p.markSent(ctx, n)
	}

	sender, ok := p.senders[n.Channel]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrNoSender, n.Channel)
		p.markFailed(ctx, n, err)
		return queue.Permanent(err)
	}

	user, err := p.stores.Users.GetByID(ctx, n.UserID)
	if err != nil {
		err = loadError("user", err)
		p.markFailed(ctx, n, err)
		return err
	}

	if err := sender.Send(ctx, n, user); err != nil {
		p.markFailed(ctx, n, err)
		if errors.Is(err, notify.ErrRejected) {
			return queue.Permanent(err)
		}
		return fmt.Errorf("failed to send %s notification: %w", n.Channel, err)
	}

	log.InfoContext(ctx, "notification delivered", "channel", n.Channel, "user_id", n.UserID)

	// The message is out. Retrying would send it again, so a failed status
	// update is only logged.
	if err := p.markSent(ctx, n); err != nil {
		log.ErrorContext(ctx, "notification delivered but not marked sent", "error", err)
	}
	return nil
}

func (p *Notifications) markSent(ctx context.Context, n *domain.Notification) error {
	if err := p.stores.Notifications.MarkSent(ctx, n.ID, p.now()); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

func (p *Notifications) markFailed(ctx context.Context, n *domain.Notification, cause error) {
	if err := p.stores.Notifications.MarkFailed(ctx, n.ID, redact.Error(cause)); err != nil {
		logger.FromContextOrDefault(ctx, p.logger).ErrorContext(ctx, "failed to mark notification failed",
			"notification_id", n.ID,
			"error", err)
	}
}
