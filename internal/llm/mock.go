package llm

import (
	"context"
	"sync"
)

// MockCompleter returns scripted responses in order and records the prompts
// it was asked to complete. The last response repeats once the script runs
// out, so a single-response mock answers every call.
type MockCompleter struct {
	responses []string
	err       error
	calls     []string
	mu        sync.Mutex
}

// NewMockCompleter returns a completer scripted with the given responses.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{responses: responses}
}

// NewFailingCompleter returns a completer whose Complete always fails with err.
func NewFailingCompleter(err error) *MockCompleter {
	return &MockCompleter{err: err}
}

// Complete returns the next scripted response.
func (c *MockCompleter) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, prompt)
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", nil
	}
	i := len(c.calls) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

// Prompts returns the prompts received so far.
func (c *MockCompleter) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// Close is a no-op.
func (c *MockCompleter) Close() error {
	return nil
}
