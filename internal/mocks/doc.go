// Package mocks provides centralized mock implementations for testing.
//
// Mocks follow one pattern: an exported XxxFn field per method overrides the
// behavior, otherwise canned values are returned, and every call is recorded
// under a mutex so concurrent tests can assert on it.
//
//	provider := &mocks.MockProvider{
//	    GenerateStructuredFn: func(ctx context.Context, prompt, system string, opts generation.Options) (*generation.Result, error) {
//	        return mocks.JSONResult(`{"ok": true}`), nil
//	    },
//	}
//
// MemoryStores is an in-memory implementation of every store contract plus
// store.Transactor, used by the processor tests to run jobs end to end
// without PostgreSQL.
package mocks
