// Package llm wraps the local language model used to answer questions.
// Generation runs against a local Ollama server; tests use a scripted mock.
package llm

import "context"

// Params controls one completion. Zero values fall back to the provider
// defaults, so callers normally pass an explicit Params.
type Params struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Completer generates a raw completion for a fully assembled prompt. The
// output is untrusted; the enforcer validates or replaces it downstream.
type Completer interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
	Close() error
}
