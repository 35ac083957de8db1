package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/goalforge/internal/domain"
	"github.com/phrazzld/goalforge/internal/platform/logger"
	"github.com/phrazzld/goalforge/internal/store"
)

// PostgresPlanStore implements store.PlanStore using PostgreSQL.
type PostgresPlanStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPlanStore creates a new PostgresPlanStore.
func NewPostgresPlanStore(db store.DBTX, logger *slog.Logger) *PostgresPlanStore {
	return &PostgresPlanStore{db: db, logger: logger.With("component", "plan_store")}
}

// WithTx returns a copy of the store bound to tx.
func (s *PostgresPlanStore) WithTx(tx *sql.Tx) store.PlanStore {
	return &PostgresPlanStore{db: tx, logger: s.logger}
}

var _ store.PlanStore = (*PostgresPlanStore)(nil)

// LatestVersion implements store.PlanStore.
func (s *PostgresPlanStore) LatestVersion(ctx context.Context, goalID uuid.UUID) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM plans WHERE goal_id = $1`, goalID).Scan(&version)
	if err != nil {
		return 0, store.NewStoreError("plan", "latest_version", "failed to read plan version", MapError(err))
	}
	return version, nil
}

// GetCurrent implements store.PlanStore.
func (s *PostgresPlanStore) GetCurrent(ctx context.Context, goalID uuid.UUID) (*domain.Plan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, goal_id, version, summary, approach, estimated_duration_days,
		       difficulty_level, weekly_hours_min, weekly_hours_max,
		       prerequisites, potential_challenges, interaction_id, created_at
		FROM plans
		WHERE goal_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	var p domain.Plan
	var prereqs, challenges []byte
	var interactionID uuid.NullUUID
	err := s.db.QueryRowContext(ctx, query, goalID).Scan(
		&p.ID,
		&p.GoalID,
		&p.Version,
		&p.Summary,
		&p.Approach,
		&p.EstimatedDurationDays,
		&p.DifficultyLevel,
		&p.WeeklyHoursMin,
		&p.WeeklyHoursMax,
		&prereqs,
		&challenges,
		&interactionID,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPlanNotFound
		}
		log.Error("failed to get current plan", "goal_id", goalID, "error", err)
		return nil, MapError(err)
	}
	if interactionID.Valid {
		p.InteractionID = &interactionID.UUID
	}
	if err := unmarshalStrings(prereqs, &p.Prerequisites); err != nil {
		return nil, fmt.Errorf("failed to decode prerequisites: %w", err)
	}
	if err := unmarshalStrings(challenges, &p.PotentialChallenges); err != nil {
		return nil, fmt.Errorf("failed to decode potential challenges: %w", err)
	}

	milestones, err := s.milestones(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Milestones = milestones

	return &p, nil
}

func (s *PostgresPlanStore) milestones(ctx context.Context, planID uuid.UUID) ([]domain.Milestone, error) {
	query := `
		SELECT id, plan_id, title, description, target_week, key_activities, sort_order
		FROM plan_milestones
		WHERE plan_id = $1
		ORDER BY target_week, sort_order
	`
	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		return nil, store.NewStoreError("plan", "milestones", "failed to query milestones", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Milestone
	for rows.Next() {
		var m domain.Milestone
		var activities []byte
		if err := rows.Scan(&m.ID, &m.PlanID, &m.Title, &m.Description, &m.TargetWeek, &activities, &m.Order); err != nil {
			return nil, fmt.Errorf("failed to scan milestone row: %w", err)
		}
		if err := unmarshalStrings(activities, &m.KeyActivities); err != nil {
			return nil, fmt.Errorf("failed to decode key activities: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestone rows: %w", err)
	}
	return out, nil
}

// Create implements store.PlanStore. Callers run it inside a transaction
// so the plan and its milestones land together.
func (s *PostgresPlanStore) Create(ctx context.Context, plan *domain.Plan) error {
	prereqs, err := marshalStrings(plan.Prerequisites)
	if err != nil {
		return err
	}
	challenges, err := marshalStrings(plan.PotentialChallenges)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO plans (id, goal_id, version, summary, approach, estimated_duration_days,
		                   difficulty_level, weekly_hours_min, weekly_hours_max,
		                   prerequisites, potential_challenges, interaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11::jsonb, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		plan.ID,
		plan.GoalID,
		plan.Version,
		plan.Summary,
		plan.Approach,
		plan.EstimatedDurationDays,
		plan.DifficultyLevel,
		plan.WeeklyHoursMin,
		plan.WeeklyHoursMax,
		prereqs,
		challenges,
		nullUUID(plan.InteractionID),
		plan.CreatedAt,
	)
	if err != nil {
		return MapUniqueViolation(err, store.ErrPlanVersionExists)
	}

	for _, m := range plan.Milestones {
		activities, err := marshalStrings(m.KeyActivities)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO plan_milestones (id, plan_id, title, description, target_week, key_activities, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		`, m.ID, plan.ID, m.Title, m.Description, m.TargetWeek, activities, m.Order)
		if err != nil {
			return store.NewStoreError("plan", "create_milestone", "failed to insert milestone", MapError(err))
		}
	}

	return nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(b), nil
}

func unmarshalStrings(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
