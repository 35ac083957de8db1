package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIInteractionClosesOnce(t *testing.T) {
	t.Parallel()

	t.Run("complete then fail", func(t *testing.T) {
		i := NewAIInteraction(uuid.New(), nil, AIRolePlanner, "gemini", "planner.v1", "plan-x", 1)
		assert.Equal(t, InteractionProcessing, i.Status)
		assert.Equal(t, 0, i.RetryCount)

		require.NoError(t, i.Complete(120, 80, 1500*time.Millisecond, time.Now()))
		assert.Equal(t, InteractionCompleted, i.Status)
		assert.Equal(t, 200, i.TotalTokens())
		assert.Equal(t, int64(1500), i.LatencyMs)

		err := i.Fail("late failure", time.Now())
		assert.ErrorIs(t, err, ErrInteractionClosed)
		assert.Equal(t, InteractionCompleted, i.Status)
	})

	t.Run("fail then complete", func(t *testing.T) {
		i := NewAIInteraction(uuid.New(), nil, AIRoleMentor, "openai", "mentor.v1", "mentor-x", 3)
		assert.Equal(t, 2, i.RetryCount)

		require.NoError(t, i.Fail("provider timeout", time.Now()))
		assert.Equal(t, "provider timeout", i.ErrorMessage)
		assert.ErrorIs(t, i.Complete(1, 1, 0, time.Now()), ErrInteractionClosed)
	})
}
