package store

import (
	"errors"
	"fmt"
)

// Base sentinels. Stores wrap them with the entity-specific errors below so
// callers can match either the kind or the exact entity.
var (
	// ErrNotFound is returned when a lookup, update or delete matches no row.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when the database rejects a row for a
	// foreign key, check or not-null constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrConflict is a serialization failure or deadlock. The transaction
	// can be retried as a whole.
	ErrConflict = errors.New("concurrent update conflict")
)

var (
	// ErrUserNotFound means no user has the requested ID.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrGoalNotFound means no goal has the requested ID.
	ErrGoalNotFound = fmt.Errorf("%w: goal", ErrNotFound)

	// ErrPlanNotFound means the goal has no plan, or no plan has the
	// requested ID.
	ErrPlanNotFound = fmt.Errorf("%w: plan", ErrNotFound)

	// ErrTaskInstanceNotFound means no task instance has the requested ID.
	ErrTaskInstanceNotFound = fmt.Errorf("%w: task instance", ErrNotFound)

	// ErrInteractionNotFound means no AI interaction has the requested ID.
	ErrInteractionNotFound = fmt.Errorf("%w: ai interaction", ErrNotFound)

	// ErrNotificationNotFound means no notification has the requested ID.
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)

	// ErrInteractionExists means a row already exists for the job key, job
	// run and attempt.
	ErrInteractionExists = fmt.Errorf("%w: ai interaction", ErrDuplicate)

	// ErrPlanVersionExists means a concurrent writer stored the same plan
	// version first.
	ErrPlanVersionExists = fmt.Errorf("%w: plan version", ErrDuplicate)
)

// IsNotFoundError reports whether err is any not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any duplicate error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError adds the entity and operation to a failure.
type StoreError struct {
	// Entity is the table-level name, such as "task_instance".
	Entity string
	// Operation is the store method in snake case, such as "mark_missed".
	Operation string
	Message   string
	// Err is the mapped cause. errors.Is sees the store sentinels through it.
	Err error
}

// Error implements error.
func (e *StoreError) Error() string {
	msg := e.Entity + " " + e.Operation + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{Entity: entity, Operation: operation, Message: message, Err: err}
}
