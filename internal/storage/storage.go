// Package storage defines the persistence interface for chunks and their
// embeddings. The in-memory vector index is rebuilt from this store at
// startup, so the store is the single source of truth across restarts.
package storage

import (
	"context"

	"github.com/medrag/consulta/internal/models"
)

// Storage defines chunk and embedding persistence operations. Writes are
// keyed by chunk key; putting an existing key replaces the row.
type Storage interface {
	// Chunk operations
	PutChunk(ctx context.Context, docID string, chunk *models.Chunk) error
	GetChunk(ctx context.Context, chunkKey string) (*models.Chunk, error)
	GetChunksByKeys(ctx context.Context, chunkKeys []string) ([]*models.Chunk, error)
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
	BatchPutChunks(ctx context.Context, docID string, chunks []*models.Chunk) error
	ClearChunks(ctx context.Context) error

	// Embedding operations
	PutEmbedding(ctx context.Context, emb *models.ChunkEmbedding) error
	ListEmbeddings(ctx context.Context) ([]*models.ChunkEmbedding, error)
	ClearEmbeddings(ctx context.Context) error

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountEmbeddings(ctx context.Context) (int64, error)

	Close() error
}
