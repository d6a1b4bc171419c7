package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaCompleter generates completions through a local Ollama server.
type OllamaCompleter struct {
	llm *ollama.LLM
}

// NewOllamaCompleter connects to the Ollama server at baseURL using model.
// The server is not contacted until the first Complete call.
func NewOllamaCompleter(baseURL, model string) (*OllamaCompleter, error) {
	client, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaCompleter{llm: client}, nil
}

// Complete generates a single completion for prompt.
func (c *OllamaCompleter) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	var opts []llms.CallOption
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	if params.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(params.Temperature))
	}
	if params.TopP > 0 {
		opts = append(opts, llms.WithTopP(params.TopP))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama completion failed: %w", err)
	}
	return out, nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (c *OllamaCompleter) Close() error {
	return nil
}
