package domain

import "errors"

var (
	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned for a value that does not parse, such as
	// a malformed date.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidID is returned for a nil or unparseable UUID.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidStatus is returned when an entity is not in the status an
	// operation requires.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInteractionClosed is returned when a completed or failed interaction
	// is asked to transition again.
	ErrInteractionClosed = errors.New("interaction already closed")

	// ErrNoMilestones is returned when a plan has no milestone to schedule
	// work against.
	ErrNoMilestones = errors.New("plan has no milestones")
)
