// Package retriever composes prefiltering, similarity scoring, and MMR
// re-ranking into the retrieval step of the ask pipeline.
package retriever

import (
	"go.uber.org/zap"

	"github.com/medrag/consulta/internal/models"
	"github.com/medrag/consulta/internal/vector"
)

// Options bounds the retrieval. TopK is the similarity shortlist size,
// SelectN the number of chunks handed to the prompt, Lambda the MMR
// relevance/diversity trade-off.
type Options struct {
	TopK    int
	SelectN int
	Lambda  float64
}

// Retriever ranks indexed chunks against a query vector.
type Retriever struct {
	index  vector.Index
	logger *zap.Logger
}

// New creates a Retriever over the given index.
func New(index vector.Index, logger *zap.Logger) *Retriever {
	return &Retriever{index: index, logger: logger}
}

// Prefilter narrows chunks by the query filter. The type restriction applies
// first; a day restriction then keeps only evolucion_dia chunks of that day.
// An empty result falls back to the full input, so prefiltering never hides
// the corpus from scoring.
func Prefilter(chunks []*models.Chunk, filter *models.QueryFilter) []*models.Chunk {
	if filter == nil {
		return chunks
	}
	candidates := chunks
	if filter.HasTypeFilter() {
		var kept []*models.Chunk
		for _, c := range candidates {
			if filter.WantsType(c.ChunkType) {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}
	if filter.Day != nil {
		var kept []*models.Chunk
		for _, c := range candidates {
			if c.ChunkType == models.ChunkEvolucionDia && c.Day != nil && *c.Day == *filter.Day {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}
	if len(candidates) == 0 {
		return chunks
	}
	return candidates
}

// Retrieve returns the chunk keys selected for the prompt, best first.
// Scoring runs only over the prefiltered candidates; if none of them has a
// vector yet, the whole index is scored instead.
func (r *Retriever) Retrieve(query []float32, chunks []*models.Chunk, filter *models.QueryFilter, opts Options) []vector.Scored {
	candidates := Prefilter(chunks, filter)

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.ChunkKey
	}
	entries := r.index.GetByKeys(keys)
	if len(entries) == 0 {
		entries = r.index.GetAll()
	}

	shortlist := vector.TopK(query, entries, opts.TopK)
	selected := vector.MMR(shortlist, opts.SelectN, opts.Lambda)

	r.logger.Debug("retrieval complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("scored", len(entries)),
		zap.Int("shortlist", len(shortlist)),
		zap.Int("selected", len(selected)),
	)
	return selected
}
