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

const instanceColumns = `ti.id, ti.task_id, ti.goal_id, ti.user_id, ti.scheduled_date, ti.status,
	ti.daily_motivation, ti.started_at, ti.completed_at, ti.actual_minutes, ti.user_notes,
	ti.quality_score, ti.ai_feedback, ti.created_at, ti.updated_at`

// PostgresTaskStore implements store.TaskStore using PostgreSQL.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	return &PostgresTaskStore{db: db, logger: logger.With("component", "task_store")}
}

// WithTx returns a copy of the store bound to tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx, logger: s.logger}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

// CreateBatch implements store.TaskStore.
func (s *PostgresTaskStore) CreateBatch(ctx context.Context, tasks []domain.Task, instances []domain.TaskInstance) error {
	for _, t := range tasks {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tasks (id, goal_id, milestone_id, title, description, reasoning,
			                   estimated_minutes, priority, interaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, t.ID, t.GoalID, nullUUID(t.MilestoneID), t.Title, t.Description, t.Reasoning,
			t.EstimatedMinutes, string(t.Priority), nullUUID(t.InteractionID), t.CreatedAt)
		if err != nil {
			return store.NewStoreError("task", "create", "failed to insert task", MapError(err))
		}
	}

	for _, in := range instances {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO task_instances (id, task_id, goal_id, user_id, scheduled_date, status,
			                            daily_motivation, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, in.ID, in.TaskID, in.GoalID, in.UserID, in.ScheduledDate, string(in.Status),
			in.DailyMotivation, in.CreatedAt)
		if err != nil {
			return store.NewStoreError("task_instance", "create", "failed to insert task instance", MapError(err))
		}
	}

	return nil
}

func scanInstance(row rowScanner, withTask bool) (*domain.TaskInstance, error) {
	var in domain.TaskInstance
	var status string
	var started, completed sql.NullTime
	var actual, score sql.NullInt64
	dest := []any{
		&in.ID, &in.TaskID, &in.GoalID, &in.UserID, &in.ScheduledDate, &status,
		&in.DailyMotivation, &started, &completed, &actual, &in.UserNotes,
		&score, &in.AIFeedback, &in.CreatedAt, &in.UpdatedAt,
	}

	var task domain.Task
	var priority string
	var milestoneID uuid.NullUUID
	if withTask {
		dest = append(dest, &task.ID, &task.GoalID, &milestoneID, &task.Title, &task.Description,
			&task.Reasoning, &task.EstimatedMinutes, &priority, &task.CreatedAt)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	in.Status = domain.TaskInstanceStatus(status)
	if started.Valid {
		in.StartedAt = &started.Time
	}
	if completed.Valid {
		in.CompletedAt = &completed.Time
	}
	if actual.Valid {
		v := int(actual.Int64)
		in.ActualMinutes = &v
	}
	if score.Valid {
		v := int(score.Int64)
		in.QualityScore = &v
	}
	if withTask {
		task.Priority = domain.TaskPriority(priority)
		if milestoneID.Valid {
			task.MilestoneID = &milestoneID.UUID
		}
		in.Task = &task
	}
	return &in, nil
}

// GetInstance implements store.TaskStore.
func (s *PostgresTaskStore) GetInstance(ctx context.Context, id uuid.UUID) (*domain.TaskInstance, error) {
	query := `
		SELECT ` + instanceColumns + `,
		       t.id, t.goal_id, t.milestone_id, t.title, t.description, t.reasoning,
		       t.estimated_minutes, t.priority, t.created_at
		FROM task_instances ti
		JOIN tasks t ON t.id = ti.task_id
		WHERE ti.id = $1
	`
	in, err := scanInstance(s.db.QueryRowContext(ctx, query, id), true)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskInstanceNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task instance",
			"task_instance_id", id, "error", err)
		return nil, MapError(err)
	}
	return in, nil
}

// CountInstancesOn implements store.TaskStore.
func (s *PostgresTaskStore) CountInstancesOn(ctx context.Context, goalID uuid.UUID, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_instances WHERE goal_id = $1 AND scheduled_date = $2`,
		goalID, day.UTC()).Scan(&n)
	if err != nil {
		return 0, store.NewStoreError("task_instance", "count", "failed to count instances", MapError(err))
	}
	return n, nil
}

// ListInstancesBetween implements store.TaskStore.
func (s *PostgresTaskStore) ListInstancesBetween(ctx context.Context, goalID uuid.UUID, from, to time.Time) ([]domain.TaskInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM task_instances ti
		WHERE ti.goal_id = $1 AND ti.scheduled_date BETWEEN $2 AND $3
		ORDER BY ti.scheduled_date, ti.created_at
	`
	return s.listInstances(ctx, query, goalID, from.UTC(), to.UTC())
}

// RecentInstances implements store.TaskStore.
func (s *PostgresTaskStore) RecentInstances(ctx context.Context, goalID uuid.UUID, limit int) ([]domain.TaskInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM task_instances ti
		WHERE ti.goal_id = $1
		ORDER BY ti.scheduled_date DESC, ti.created_at DESC
		LIMIT $2
	`
	return s.listInstances(ctx, query, goalID, limit)
}

func (s *PostgresTaskStore) listInstances(ctx context.Context, query string, args ...any) ([]domain.TaskInstance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("task_instance", "list", "failed to query instances", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.TaskInstance
	for rows.Next() {
		in, err := scanInstance(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task instance row: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task instance rows: %w", err)
	}
	return out, nil
}

// SaveEvaluation implements store.TaskStore.
func (s *PostgresTaskStore) SaveEvaluation(ctx context.Context, id uuid.UUID, score int, feedback string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_instances
		SET quality_score = $2, ai_feedback = $3, updated_at = NOW()
		WHERE id = $1
	`, id, score, feedback)
	if err != nil {
		return store.NewStoreError("task_instance", "save_evaluation", "failed to save evaluation", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrTaskInstanceNotFound)
}

// MarkMissed implements store.TaskStore.
func (s *PostgresTaskStore) MarkMissed(ctx context.Context, day time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE task_instances
		SET status = 'missed', updated_at = NOW()
		WHERE status = 'pending' AND scheduled_date <= $1
	`, day.UTC())
	if err != nil {
		return 0, store.NewStoreError("task_instance", "mark_missed", "failed to mark missed tasks", MapError(err))
	}
	return result.RowsAffected()
}

// DailyCompletionByUser implements store.TaskStore.
func (s *PostgresTaskStore) DailyCompletionByUser(ctx context.Context, day time.Time) ([]store.DailyCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM task_instances
		WHERE scheduled_date = $1
		GROUP BY user_id
	`, day.UTC())
	if err != nil {
		return nil, store.NewStoreError("task_instance", "daily_completion", "failed to tally completion", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []store.DailyCompletion
	for rows.Next() {
		var c store.DailyCompletion
		if err := rows.Scan(&c.UserID, &c.Total, &c.Completed); err != nil {
			return nil, fmt.Errorf("failed to scan completion row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completion rows: %w", err)
	}
	return out, nil
}
