package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/store"
)

const goalColumns = `g.id, g.user_id, g.title, g.description, g.category, g.target_date,
	g.daily_time_minutes, g.status, g.started_at, g.created_at, g.updated_at`

// PostgresGoalStore implements store.GoalStore using PostgreSQL.
type PostgresGoalStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGoalStore creates a new PostgresGoalStore.
func NewPostgresGoalStore(db store.DBTX, logger *slog.Logger) *PostgresGoalStore {
	return &PostgresGoalStore{db: db, logger: logger.With("component", "goal_store")}
}

// WithTx returns a copy of the store bound to tx.
func (s *PostgresGoalStore) WithTx(tx *sql.Tx) store.GoalStore {
	return &PostgresGoalStore{db: tx, logger: s.logger}
}

var _ store.GoalStore = (*PostgresGoalStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*domain.Goal, error) {
	var g domain.Goal
	var status string
	var target, started sql.NullTime
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Title,
		&g.Description,
		&g.Category,
		&target,
		&g.DailyTimeMinutes,
		&status,
		&started,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Status = domain.GoalStatus(status)
	if target.Valid {
		g.TargetDate = &target.Time
	}
	if started.Valid {
		g.StartedAt = &started.Time
	}
	return &g, nil
}

// GetByID implements store.GoalStore.
func (s *PostgresGoalStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals g WHERE g.id = $1`

	goal, err := scanGoal(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGoalNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get goal by ID",
			"goal_id", id, "error", err)
		return nil, MapError(err)
	}
	return goal, nil
}

// UpdateStatus implements store.GoalStore.
func (s *PostgresGoalStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GoalStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: goal status %q", domain.ErrInvalidStatus, status)
	}

	query := `
		UPDATE goals
		SET status = $2,
		    started_at = CASE WHEN $2 = 'active' AND started_at IS NULL THEN NOW() ELSE started_at END,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return store.NewStoreError("goal", "update_status", "failed to update goal status", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrGoalNotFound)
}

// ListActive implements store.GoalStore.
func (s *PostgresGoalStore) ListActive(ctx context.Context) ([]domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals g WHERE g.status = 'active' ORDER BY g.created_at`
	return s.list(ctx, query)
}

// ListActiveWithActivitySince implements store.GoalStore.
func (s *PostgresGoalStore) ListActiveWithActivitySince(ctx context.Context, since time.Time) ([]domain.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals g
		WHERE g.status = 'active'
		  AND EXISTS (
		      SELECT 1 FROM task_instances ti
		      WHERE ti.goal_id = g.id AND ti.scheduled_date >= $1
		  )
		ORDER BY g.created_at
	`
	return s.list(ctx, query, since.UTC())
}

func (s *PostgresGoalStore) list(ctx context.Context, query string, args ...any) ([]domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("goal", "list", "failed to query goals", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var goals []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal row: %w", err)
		}
		goals = append(goals, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goal rows: %w", err)
	}
	return goals, nil
}
