// Package embedding produces L2-normalized text embeddings. The default
// provider talks to a local Ollama server; an ONNX provider is available for
// fully offline builds (requires CGO), and a deterministic mock backs tests.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return
// unit-length vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
