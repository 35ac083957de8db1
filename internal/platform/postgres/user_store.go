package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/store"
)

// PostgresUserStore implements store.UserStore using PostgreSQL.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgresUserStore.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	return &PostgresUserStore{db: db, logger: logger.With("component", "user_store")}
}

// WithTx returns a copy of the store bound to tx.
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{db: tx, logger: s.logger}
}

var _ store.UserStore = (*PostgresUserStore)(nil)

// GetByID implements store.UserStore.
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, email, name, preferences, ai_token_budget, ai_tokens_used_today,
		       token_reset_date, streak_days, longest_streak, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user domain.User
	var prefs []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&prefs,
		&user.AITokenBudget,
		&user.AITokensUsedToday,
		&user.TokenResetDate,
		&user.StreakDays,
		&user.LongestStreak,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to get user by ID", "user_id", id, "error", err)
		return nil, MapError(err)
	}

	user.Preferences = domain.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &user.Preferences); err != nil {
			log.Warn("ignoring malformed user preferences", "user_id", id, "error", err)
			user.Preferences = domain.DefaultPreferences()
		}
	}

	return &user, nil
}

// AddTokenUsage implements store.UserStore. A single UPDATE keeps the
// increment atomic across concurrent jobs for the same user.
func (s *PostgresUserStore) AddTokenUsage(ctx context.Context, id uuid.UUID, tokens int, day time.Time) (int, error) {
	if tokens < 0 {
		return 0, fmt.Errorf("%w: negative token usage %d", store.ErrInvalidEntity, tokens)
	}

	query := `
		UPDATE users
		SET ai_tokens_used_today = CASE
		        WHEN token_reset_date < $3 THEN LEAST(ai_token_budget, $2)
		        ELSE GREATEST(ai_tokens_used_today, LEAST(ai_token_budget, ai_tokens_used_today + $2))
		    END,
		    token_reset_date = GREATEST(token_reset_date, $3),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ai_tokens_used_today
	`

	var used int
	err := s.db.QueryRowContext(ctx, query, id, tokens, day.UTC()).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrUserNotFound
		}
		return 0, store.NewStoreError("user", "add_token_usage", "failed to record token usage", MapError(err))
	}

	return used, nil
}

// ResetDailyTokens implements store.UserStore.
func (s *PostgresUserStore) ResetDailyTokens(ctx context.Context, day time.Time) (int64, error) {
	query := `
		UPDATE users
		SET ai_tokens_used_today = 0, token_reset_date = $1, updated_at = NOW()
		WHERE token_reset_date < $1
	`

	result, err := s.db.ExecContext(ctx, query, day.UTC())
	if err != nil {
		return 0, store.NewStoreError("user", "reset_tokens", "failed to reset daily tokens", MapError(err))
	}
	return result.RowsAffected()
}

// ResetStreak implements store.UserStore.
func (s *PostgresUserStore) ResetStreak(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET streak_days = 0, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return store.NewStoreError("user", "reset_streak", "failed to reset streak", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrUserNotFound)
}
