// Package keyword provides a Bleve keyword index over ingested chunks. It
// backs the chunk inspection endpoint so operators can grep the corpus by
// term; answer retrieval itself is purely vector-based.
package keyword

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/medrag/consulta/internal/models"
)

// Result is a single keyword search hit.
type Result struct {
	ChunkKey string  `json:"chunkKey"`
	Score    float64 `json:"score"`
}

// ChunkIndex is an in-memory Bleve index of chunk texts. Contents are
// rebuilt from storage at startup together with the vector index.
type ChunkIndex struct {
	index bleve.Index
	mu    sync.Mutex
}

type chunkDoc struct {
	Text      string `json:"text"`
	ChunkType string `json:"chunkType"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming); clinical terms
	// like "pleurostomía" must match exactly as written.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	typeFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("chunkType", typeFieldMapping)
	im.DefaultMapping = docMapping

	return im
}

// NewChunkIndex creates an empty in-memory index.
func NewChunkIndex() (*ChunkIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &ChunkIndex{index: index}, nil
}

// Index adds or replaces a chunk.
func (c *ChunkIndex) Index(ctx context.Context, chunk *models.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Index(chunk.ChunkKey, chunkDoc{
		Text:      chunk.Text,
		ChunkType: string(chunk.ChunkType),
	})
}

// Search runs a match query over chunk texts and returns up to limit hits.
func (c *ChunkIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]*Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &Result{ChunkKey: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Clear drops every indexed chunk by swapping in a fresh in-memory index.
func (c *ChunkIndex) Clear() error {
	fresh, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate keyword index: %w", err)
	}
	c.mu.Lock()
	old := c.index
	c.index = fresh
	c.mu.Unlock()
	return old.Close()
}

// DocCount returns the number of indexed chunks.
func (c *ChunkIndex) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the underlying index.
func (c *ChunkIndex) Close() error {
	return c.index.Close()
}
