package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/goalforge/internal/generation"
	"github.com/phrazzld/goalforge/internal/output"
)

// Generation is a validated, rule-adjusted model answer plus the provenance
// needed to record it.
type Generation[T any] struct {
	Output    T
	RawOutput string
	Tokens    generation.Tokens
	Latency   time.Duration
}

// Prompt is a rendered user prompt with its system prompt.
type Prompt struct {
	User   string
	System string
}

// EstimatedTokens is the pre-flight token estimate for the prompt.
func (p Prompt) EstimatedTokens() int {
	return generation.EstimatePrompt(p.User, p.System)
}

// generate calls the provider and validates the answer against T's schema.
func generate[T any](
	ctx context.Context,
	provider generation.Provider,
	logger *slog.Logger,
	prompt Prompt,
	opts generation.Options,
	schemaName string,
) (*Generation[T], error) {
	res, err := provider.GenerateStructured(ctx, prompt.User, prompt.System, opts)
	if err != nil {
		return nil, err
	}

	out, err := output.Validate[T](res.Data, schemaName)
	if err != nil {
		if ve, ok := output.AsValidationError(err); ok {
			logger.WarnContext(ctx, "model output failed validation",
				"schema", schemaName,
				"field_errors", len(ve.FieldErrors),
				"error", err)
		}
		return nil, &generation.InvalidResponseError{
			RawOutput: res.RawOutput,
			Tokens:    res.Tokens,
			Err:       err,
		}
	}

	return &Generation[T]{
		Output:    out,
		RawOutput: res.RawOutput,
		Tokens:    res.Tokens,
		Latency:   res.Latency,
	}, nil
}
