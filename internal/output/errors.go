package output

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("AI output validation failed")

	// ErrNoJSON is returned when no JSON document can be found in the text.
	ErrNoJSON = errors.New("no JSON document found in output")
)

// FieldError describes one schema violation.
type FieldError struct {
	// Path is the JSON path of the field, e.g. milestones[2].title. Empty
	// for document-level problems.
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError reports that model output did not match a schema.
type ValidationError struct {
	SchemaName  string
	FieldErrors []FieldError
	RawOutput   string
}

// Error implements error.
func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		if fe.Path == "" {
			msgs = append(msgs, fe.Message)
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Path, fe.Message))
	}
	return fmt.Sprintf("AI output validation failed for %s: %s", e.SchemaName, strings.Join(msgs, "; "))
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidationError unwraps err into a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
