package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/store"
)

// PostgresNotificationStore implements store.NotificationStore using PostgreSQL.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgresNotificationStore.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	return &PostgresNotificationStore{db: db, logger: logger.With("component", "notification_store")}
}

// WithTx returns a copy of the store bound to tx.
func (s *PostgresNotificationStore) WithTx(tx *sql.Tx) store.NotificationStore {
	return &PostgresNotificationStore{db: tx, logger: s.logger}
}

var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// Create implements store.NotificationStore.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	var data any
	if len(n.Data) > 0 {
		data = string(n.Data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, channel, status, title, body, data, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
	`, n.ID, n.UserID, string(n.Type), string(n.Channel), string(n.Status), n.Title, n.Body,
		data, n.SentAt, n.CreatedAt)
	if err != nil {
		return store.NewStoreError("notification", "create", "failed to insert notification", MapError(err))
	}
	return nil
}

// GetByID implements store.NotificationStore.
func (s *PostgresNotificationStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var n domain.Notification
	var typ, channel, status string
	var data []byte
	var errMsg sql.NullString
	var sent, read sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, type, channel, status, title, body, data, error_message,
		       sent_at, read_at, created_at
		FROM notifications
		WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &typ, &channel, &status, &n.Title, &n.Body, &data,
		&errMsg, &sent, &read, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotificationNotFound
		}
		return nil, MapError(err)
	}

	n.Type = domain.NotificationType(typ)
	n.Channel = domain.NotificationChannel(channel)
	n.Status = domain.NotificationStatus(status)
	n.Data = data
	n.ErrorMessage = errMsg.String
	if sent.Valid {
		n.SentAt = &sent.Time
	}
	if read.Valid {
		n.ReadAt = &read.Time
	}
	return &n, nil
}

// MarkSent implements store.NotificationStore.
func (s *PostgresNotificationStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = $2, error_message = NULL
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return store.NewStoreError("notification", "mark_sent", "failed to mark sent", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrNotificationNotFound)
}

// MarkFailed implements store.NotificationStore.
func (s *PostgresNotificationStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = 'failed', error_message = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return store.NewStoreError("notification", "mark_failed", "failed to mark failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrNotificationNotFound)
}

// DeleteDeliveredBefore implements store.NotificationStore.
func (s *PostgresNotificationStore) DeleteDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE status IN ('sent', 'read') AND created_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, store.NewStoreError("notification", "cleanup", "failed to delete old notifications", MapError(err))
	}
	return result.RowsAffected()
}
