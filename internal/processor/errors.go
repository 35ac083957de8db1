package processor

import (
	"errors"
	"fmt"

	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/phrazzld/goalforge/internal/store"
)

var (
	// ErrBudgetExceeded is returned when a generation would push the user
	// over the daily token budget.
	ErrBudgetExceeded = errors.New("daily token budget exceeded")

	// ErrWrongOwner is returned when a payload's user does not own the
	// referenced entity.
	ErrWrongOwner = errors.New("entity belongs to another user")

	// ErrAttemptClosed is returned when the interaction of the current
	// attempt was already closed as failed by an earlier delivery.
	ErrAttemptClosed = errors.New("interaction for this attempt is already closed")

	// ErrNoSender is returned when no sender is configured for a channel.
	ErrNoSender = errors.New("no sender configured for channel")
)

// loadError wraps a lookup failure. Missing entities are permanent, since
// retrying cannot make them appear.
func loadError(what string, err error) error {
	err = fmt.Errorf("failed to load %s: %w", what, err)
	if store.IsNotFoundError(err) {
		return queue.Permanent(err)
	}
	return err
}
