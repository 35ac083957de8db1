package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// InsertUser creates a user with the given daily token budget and returns
// its ID.
func InsertUser(t *testing.T, tx *sql.Tx, budget int) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO users (id, email, name, ai_token_budget, token_reset_date)
		VALUES ($1, $2, 'Test User', $3, $4)
	`, id, id.String()+"@example.com", budget, time.Now().UTC().Format("2006-01-02"))
	require.NoError(t, err, "Failed to insert user")
	return id
}

// InsertGoal creates an active goal for userID with the given target date.
func InsertGoal(t *testing.T, tx *sql.Tx, userID uuid.UUID, target time.Time) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO goals (id, user_id, title, description, category, target_date, status, started_at)
		VALUES ($1, $2, 'Learn Go', 'Ship a worker service', 'learning', $3, 'active', NOW())
	`, id, userID, target.Format("2006-01-02"))
	require.NoError(t, err, "Failed to insert goal")
	return id
}
