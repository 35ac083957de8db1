package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/phrazzld/goalforge/internal/generation"
)

// ProviderCall records one GenerateStructured call.
type ProviderCall struct {
	Prompt       string
	SystemPrompt string
	Options      generation.Options
}

// MockProvider implements generation.Provider for testing.
type MockProvider struct {
	// ProviderName is returned by Name; defaults to gemini.
	ProviderName generation.ProviderName

	// GenerateStructuredFn overrides GenerateStructured when set.
	GenerateStructuredFn func(ctx context.Context, prompt, systemPrompt string, opts generation.Options) (*generation.Result, error)

	// Default response values
	Result *generation.Result
	Err    error

	mu    sync.Mutex
	calls []ProviderCall
}

var _ generation.Provider = (*MockProvider)(nil)

// Name implements generation.Provider.
func (m *MockProvider) Name() generation.ProviderName {
	if m.ProviderName == "" {
		return generation.ProviderGemini
	}
	return m.ProviderName
}

// GenerateStructured implements generation.Provider.
func (m *MockProvider) GenerateStructured(ctx context.Context, prompt, systemPrompt string, opts generation.Options) (*generation.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ProviderCall{Prompt: prompt, SystemPrompt: systemPrompt, Options: opts})
	m.mu.Unlock()

	if m.GenerateStructuredFn != nil {
		return m.GenerateStructuredFn(ctx, prompt, systemPrompt, opts)
	}
	return m.Result, m.Err
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []ProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProviderCall(nil), m.calls...)
}

// CallCount returns how many times GenerateStructured was called.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// JSONResult builds a successful result for a JSON document with fixed
// token usage (100 in, 50 out).
func JSONResult(doc string) *generation.Result {
	return &generation.Result{
		Data:      json.RawMessage(doc),
		RawOutput: doc,
		Tokens:    generation.Tokens{Input: 100, Output: 50, Total: 150},
	}
}

// NewMockProviderWithJSON creates a provider that always answers doc.
func NewMockProviderWithJSON(doc string) *MockProvider {
	return &MockProvider{Result: JSONResult(doc)}
}

// NewMockProviderWithError creates a provider that always fails with err.
func NewMockProviderWithError(err error) *MockProvider {
	return &MockProvider{Err: err}
}
