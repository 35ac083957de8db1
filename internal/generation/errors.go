package generation

import "errors"

// Provider errors. Backends wrap one of these so callers can classify a
// failure without knowing which provider produced it.
var (
	// ErrGenerationFailed is a request failure that is neither transient nor
	// a bad answer, such as a rejected API key.
	ErrGenerationFailed = errors.New("failed to generate content")

	// ErrInvalidResponse means the provider answered but the output could
	// not be decoded or failed the schema.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked means a safety filter withheld the answer.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure marks rate limits, timeouts and 5xx responses.
	// WithRetry retries only these.
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrInvalidConfig is returned when a provider is built without the
	// settings it needs, such as its API key.
	ErrInvalidConfig = errors.New("invalid provider configuration")

	// ErrUnknownProvider is returned for a provider name outside
	// gemini, openai and anthropic.
	ErrUnknownProvider = errors.New("unknown AI provider")
)
