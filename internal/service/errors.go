package service

import "errors"

var (
	// ErrDegenerateOutput indicates the model answered with a schema-valid
	// document that is still unusable, such as a single daily task.
	ErrDegenerateOutput = errors.New("generated output is degenerate")

	// ErrInvalidRequest indicates a service was called with inputs it cannot
	// build a prompt from.
	ErrInvalidRequest = errors.New("invalid generation request")
)
