// Package gemini implements generation.Provider on top of Google's Gemini
// API through the google.golang.org/genai SDK.
//
// Requests ask for application/json output, so a healthy response is a bare
// JSON document. Usage metadata from the response is used for token
// accounting; when it is missing the character-based estimate from the
// generation package fills in. Transient failures (rate limits, 5xx,
// timeouts) are retried with exponential backoff and jitter before the
// error reaches the job queue.
package gemini
