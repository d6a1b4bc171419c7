package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/medrag/consulta/pkg/utils"
)

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

// NewOllamaEmbedder connects to the Ollama server at baseURL using the given
// embedding model. The server is not contacted until the first Embed call.
func NewOllamaEmbedder(baseURL, model string, dimensions int) (*OllamaEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama embedder: %w", err)
	}
	return &OllamaEmbedder{embedder: embedder, dimensions: dimensions}, nil
}

// Embed returns the normalized embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %w", err)
	}
	if e.dimensions > 0 && len(vec) != e.dimensions {
		return nil, fmt.Errorf("ollama returned %d dimensions, expected %d", len(vec), e.dimensions)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch embeds all texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama batch embedding failed: %w", err)
	}
	for i, vec := range vecs {
		if e.dimensions > 0 && len(vec) != e.dimensions {
			return nil, fmt.Errorf("ollama returned %d dimensions for text %d, expected %d", len(vec), i, e.dimensions)
		}
		utils.NormalizeL2(vec)
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (e *OllamaEmbedder) Close() error {
	return nil
}
