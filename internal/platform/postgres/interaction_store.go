package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/store"
)

// PostgresInteractionStore implements store.InteractionStore using PostgreSQL.
type PostgresInteractionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresInteractionStore creates a new PostgresInteractionStore.
func NewPostgresInteractionStore(db store.DBTX, logger *slog.Logger) *PostgresInteractionStore {
	return &PostgresInteractionStore{db: db, logger: logger.With("component", "interaction_store")}
}

// WithTx returns a copy of the store bound to tx.
func (s *PostgresInteractionStore) WithTx(tx *sql.Tx) store.InteractionStore {
	return &PostgresInteractionStore{db: tx, logger: s.logger}
}

var _ store.InteractionStore = (*PostgresInteractionStore)(nil)

// Create implements store.InteractionStore.
func (s *PostgresInteractionStore) Create(ctx context.Context, i *domain.AIInteraction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_interactions (id, user_id, goal_id, role, provider, prompt_version,
		                             job_key, job_run, attempt, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, i.ID, i.UserID, nullUUID(i.GoalID), string(i.Role), i.Provider, i.PromptVersion,
		i.JobKey, i.JobRun, i.Attempt, string(i.Status), i.RetryCount, i.CreatedAt)
	if err != nil {
		return MapUniqueViolation(err, store.ErrInteractionExists)
	}
	return nil
}

// ListByJobKey implements store.InteractionStore.
func (s *PostgresInteractionStore) ListByJobKey(ctx context.Context, jobKey string) ([]domain.AIInteraction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, goal_id, role, provider, prompt_version, job_key, job_run, attempt, status,
		       input_tokens, output_tokens, latency_ms, COALESCE(error_message, ''), retry_count,
		       created_at, completed_at
		FROM ai_interactions
		WHERE job_key = $1
		ORDER BY created_at, attempt
	`, jobKey)
	if err != nil {
		return nil, store.NewStoreError("ai_interaction", "list", "failed to query interactions", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AIInteraction
	for rows.Next() {
		var i domain.AIInteraction
		var goalID uuid.NullUUID
		var role, status string
		var completed sql.NullTime
		if err := rows.Scan(&i.ID, &i.UserID, &goalID, &role, &i.Provider, &i.PromptVersion,
			&i.JobKey, &i.JobRun, &i.Attempt, &status, &i.InputTokens, &i.OutputTokens, &i.LatencyMs,
			&i.ErrorMessage, &i.RetryCount, &i.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan interaction row: %w", err)
		}
		i.Role = domain.AIRole(role)
		i.Status = domain.InteractionStatus(status)
		if goalID.Valid {
			i.GoalID = &goalID.UUID
		}
		if completed.Valid {
			i.CompletedAt = &completed.Time
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction rows: %w", err)
	}
	return out, nil
}

// Close implements store.InteractionStore. The status guard in the WHERE
// clause makes closing a row a one-time transition.
func (s *PostgresInteractionStore) Close(ctx context.Context, i *domain.AIInteraction) error {
	if !i.Status.Closed() {
		return fmt.Errorf("%w: close requires a final status, got %s", domain.ErrInvalidStatus, i.Status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE ai_interactions
		SET status = $2, input_tokens = $3, output_tokens = $4, latency_ms = $5,
		    error_message = NULLIF($6, ''), completed_at = $7
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, i.ID, string(i.Status), i.InputTokens, i.OutputTokens, i.LatencyMs, i.ErrorMessage, i.CompletedAt)
	if err != nil {
		return store.NewStoreError("ai_interaction", "close", "failed to close interaction", MapError(err))
	}
	return CheckRowsAffected(result, fmt.Errorf("%w: %s", domain.ErrInteractionClosed, i.ID))
}

// SaveOutput implements store.InteractionStore.
func (s *PostgresInteractionStore) SaveOutput(ctx context.Context, o *domain.AIOutput) error {
	var validated any
	if len(o.ValidatedOutput) > 0 {
		validated = string(o.ValidatedOutput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_outputs (id, interaction_id, output_type, raw_output, validated_output, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
	`, o.ID, o.InteractionID, o.OutputType, o.RawOutput, validated, o.CreatedAt)
	if err != nil {
		return store.NewStoreError("ai_output", "create", "failed to store output", MapError(err))
	}
	return nil
}

// DeleteClosedBefore implements store.InteractionStore. Outputs go with
// their interaction through ON DELETE CASCADE.
func (s *PostgresInteractionStore) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM ai_interactions
		WHERE status IN ('completed', 'failed') AND created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM plans p WHERE p.interaction_id = ai_interactions.id)
	`, cutoff.UTC())
	if err != nil {
		return 0, store.NewStoreError("ai_interaction", "cleanup", "failed to delete old interactions", MapError(err))
	}
	return result.RowsAffected()
}
