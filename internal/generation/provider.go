package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ProviderName identifies an AI backend.
type ProviderName string

// Supported backends
const (
	ProviderGemini    ProviderName = "gemini"
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
)

// ParseProviderName validates a configured provider name.
func ParseProviderName(s string) (ProviderName, error) {
	switch p := ProviderName(s); p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Options tunes a single generation request. Zero values leave the choice to
// the backend.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Tokens is the token usage of one request as the backend reported it.
// Counts the backend left out are zero.
type Tokens struct {
	Input  int
	Output int
	Total  int

	// Estimated is a local approximation of the request and answer size,
	// for logs only. It is never charged or stored as usage.
	Estimated int
}

// Result is a successful generation.
type Result struct {
	// Data is the parsed JSON document. It is syntactically valid JSON but
	// has not been checked against any schema.
	Data json.RawMessage

	// RawOutput is the text exactly as the backend returned it.
	RawOutput string

	Tokens  Tokens
	Latency time.Duration
}

// Provider is implemented by every AI backend adapter.
type Provider interface {
	// Name identifies the backend for provenance records.
	Name() ProviderName

	// GenerateStructured asks the backend for a JSON response to prompt.
	// Network, auth and quota problems are returned as errors wrapping
	// ErrTransientFailure or ErrGenerationFailed. A response that is not
	// JSON is reported with ErrInvalidResponse and, when available, the raw
	// text in an *InvalidResponseError.
	GenerateStructured(ctx context.Context, prompt, systemPrompt string, opts Options) (*Result, error)
}

// InvalidResponseError carries the raw text of a response that could not be
// parsed, so callers can keep it for forensic replay.
type InvalidResponseError struct {
	RawOutput string
	Tokens    Tokens
	Err       error
}

// Error implements error.
func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalidResponse, e.Err)
}

// Unwrap lets errors.Is match ErrInvalidResponse.
func (e *InvalidResponseError) Unwrap() []error {
	return []error{ErrInvalidResponse, e.Err}
}
