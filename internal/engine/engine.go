// Package engine wires chunking, embedding, retrieval, prompting, and output
// enforcement into the ingest/ask pipeline. One engine serves one corpus: the
// single most recently ingested clinical record.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medrag/consulta/internal/chunker"
	"github.com/medrag/consulta/internal/embedding"
	"github.com/medrag/consulta/internal/enforcer"
	"github.com/medrag/consulta/internal/keyword"
	"github.com/medrag/consulta/internal/llm"
	"github.com/medrag/consulta/internal/models"
	"github.com/medrag/consulta/internal/prompt"
	"github.com/medrag/consulta/internal/queryfilter"
	"github.com/medrag/consulta/internal/retriever"
	"github.com/medrag/consulta/internal/storage"
	"github.com/medrag/consulta/internal/vector"
	"github.com/medrag/consulta/pkg/utils"
)

// Embedding prefixes for asymmetric retrieval models (e5 family).
const (
	passagePrefix = "passage: "
	queryPrefix   = "query: "
)

// Options are the retrieval and generation knobs.
type Options struct {
	TopK      int
	SelectN   int
	Lambda    float64
	LLMParams llm.Params
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		TopK:    10,
		SelectN: 3,
		Lambda:  0.7,
		LLMParams: llm.Params{
			MaxTokens:   128,
			Temperature: 0.2,
			TopP:        0.95,
		},
	}
}

// Status reports corpus counters and the ingested record's identity.
type Status struct {
	DocID      string `json:"doc_id,omitempty"`
	Chunks     int64  `json:"chunks"`
	Embeddings int64  `json:"embeddings"`
	Indexed    int    `json:"indexed"`
	Keyword    uint64 `json:"keyword_indexed"`
}

// Engine is the QA pipeline over the ingested record.
type Engine struct {
	store     storage.Storage
	index     vector.Index
	kw        *keyword.ChunkIndex
	embedder  embedding.Embedder
	completer llm.Completer
	parser    queryfilter.Parser
	retriever *retriever.Retriever
	logger    *zap.Logger
	opts      Options

	// ingestMu serializes ingest/clear so a concurrent Ask never sees a
	// half-replaced corpus.
	ingestMu sync.Mutex
}

// New assembles an engine from its collaborators.
func New(store storage.Storage, index vector.Index, kw *keyword.ChunkIndex,
	embedder embedding.Embedder, completer llm.Completer,
	parser queryfilter.Parser, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		index:     index,
		kw:        kw,
		embedder:  embedder,
		completer: completer,
		parser:    parser,
		retriever: retriever.New(index, logger),
		logger:    logger,
		opts:      opts,
	}
}

// Load rebuilds the in-memory indexes from storage. Called once at startup;
// embedding insertion order is preserved so retrieval ties break the same way
// across restarts.
func (e *Engine) Load(ctx context.Context) error {
	chunks, err := e.store.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	for _, c := range chunks {
		if err := e.kw.Index(ctx, c); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ChunkKey, err)
		}
	}

	embs, err := e.store.ListEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}
	for _, emb := range embs {
		e.index.Put(emb.ChunkKey, emb.Vec)
	}

	e.logger.Info("corpus loaded",
		zap.Int("chunks", len(chunks)),
		zap.Int("embeddings", len(embs)),
	)
	return nil
}

// Ingest replaces the corpus with the given record: previous chunks and
// embeddings are dropped first, then every chunk is stored, embedded, and
// indexed. Embedding failures abort the ingest and leave a partial corpus in
// storage; re-ingesting the record recovers.
func (e *Engine) Ingest(ctx context.Context, rec *models.ClinicalRecord) (*models.IngestResponse, error) {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	docID := rec.DocID()
	chunks := chunker.Build(rec)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("record %s produced no chunks", docID)
	}

	if err := e.clearLocked(ctx); err != nil {
		return nil, err
	}

	if err := e.store.BatchPutChunks(ctx, docID, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	start := time.Now()
	for _, c := range chunks {
		vec, err := e.embedder.Embed(ctx, passagePrefix+c.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %s: %w", c.ChunkKey, err)
		}
		if err := e.store.PutEmbedding(ctx, &models.ChunkEmbedding{
			ChunkKey: c.ChunkKey,
			Dim:      len(vec),
			Vec:      vec,
		}); err != nil {
			return nil, fmt.Errorf("failed to store embedding %s: %w", c.ChunkKey, err)
		}
		e.index.Put(c.ChunkKey, vec)
		if err := e.kw.Index(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to index chunk %s: %w", c.ChunkKey, err)
		}
	}

	e.logger.Info("record ingested",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Duration("embed_time", time.Since(start)),
	)
	return &models.IngestResponse{DocID: docID, Chunks: len(chunks)}, nil
}

// Ask answers a question against the ingested record. It always produces an
// answer: generation or validation failures degrade to the deterministic
// extraction, and an empty corpus answers that the report has no information.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	// Request overrides win; unset values fall back to the configured knobs
	// before Validate applies its hard bounds.
	if req.TopK <= 0 {
		req.TopK = e.opts.TopK
	}
	if req.SelectN <= 0 {
		req.SelectN = e.opts.SelectN
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	traceID := uuid.NewString()
	start := time.Now()
	logger := e.logger.With(zap.String("trace_id", traceID))

	chunks, err := e.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		logger.Warn("ask against empty corpus")
		return &models.AskResponse{
			Question:  req.Question,
			Answer:    enforcer.NoAnswer,
			Fallback:  true,
			QueryTime: time.Since(start).Milliseconds(),
		}, nil
	}

	qvec, err := e.embedder.Embed(ctx, queryPrefix+req.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	filter := e.parser.Parse(req.Question)
	selected := e.retriever.Retrieve(qvec, chunks, filter, retriever.Options{
		TopK:    req.TopK,
		SelectN: req.SelectN,
		Lambda:  e.opts.Lambda,
	})

	ordered := orderByScore(chunks, selected)
	logger.Debug("chunks selected", zap.Strings("chunk_keys", chunkKeys(ordered)))

	promptText := prompt.Assemble(ordered, req.Question)
	logger.Debug("prompt assembled", zap.String("prompt_head", utils.Truncate(promptText, 2000)))
	raw, err := e.completer.Complete(ctx, promptText, e.opts.LLMParams)
	if err != nil {
		// Degrade to deterministic extraction instead of failing the ask.
		logger.Warn("completion failed, using deterministic extraction", zap.Error(err))
		raw = ""
	}

	result := enforcer.Enforce(raw, ordered)
	if result.Fallback {
		logger.Info("answer built by deterministic extraction")
	}

	sources := make([]*models.SourceRef, len(result.Sources))
	for i, c := range result.Sources {
		sources[i] = models.SourceRefFromChunk(c)
	}

	resp := &models.AskResponse{
		Question:  req.Question,
		Answer:    result.Answer,
		Sources:   sources,
		Fallback:  result.Fallback,
		QueryTime: time.Since(start).Milliseconds(),
	}
	logger.Info("question answered",
		zap.Int("sources", len(sources)),
		zap.Bool("fallback", resp.Fallback),
		zap.Int64("query_time_ms", resp.QueryTime),
	)
	return resp, nil
}

// Clear drops the corpus from storage and both indexes.
func (e *Engine) Clear(ctx context.Context) error {
	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()
	return e.clearLocked(ctx)
}

func (e *Engine) clearLocked(ctx context.Context) error {
	if err := e.store.ClearChunks(ctx); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	if err := e.store.ClearEmbeddings(ctx); err != nil {
		return fmt.Errorf("failed to clear embeddings: %w", err)
	}
	e.index.Clear()
	if err := e.kw.Clear(); err != nil {
		return fmt.Errorf("failed to clear keyword index: %w", err)
	}
	return nil
}

// GetChunk returns one stored chunk by key.
func (e *Engine) GetChunk(ctx context.Context, chunkKey string) (*models.Chunk, error) {
	return e.store.GetChunk(ctx, chunkKey)
}

// SearchChunks runs a keyword query over the ingested chunks.
func (e *Engine) SearchChunks(ctx context.Context, query string, limit int) ([]*keyword.Result, error) {
	if limit <= 0 {
		limit = 10
	}
	return e.kw.Search(ctx, query, limit)
}

// Status returns corpus counters and the current doc ID.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	chunks, err := e.store.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	embs, err := e.store.CountEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	kwCount, err := e.kw.DocCount()
	if err != nil {
		return nil, err
	}
	st := &Status{
		Chunks:     int64(len(chunks)),
		Embeddings: embs,
		Indexed:    e.index.Size(),
		Keyword:    kwCount,
	}
	if len(chunks) > 0 {
		if i := strings.Index(chunks[0].ChunkKey, "::"); i > 0 {
			st.DocID = chunks[0].ChunkKey[:i]
		}
	}
	return st, nil
}

// orderByScore maps the retrieval selection back to full chunks, preserving
// the selection order (best first) and dropping duplicates.
func orderByScore(chunks []*models.Chunk, selected []vector.Scored) []*models.Chunk {
	byKey := make(map[string]*models.Chunk, len(chunks))
	for _, c := range chunks {
		byKey[c.ChunkKey] = c
	}
	seen := make(map[string]bool, len(selected))
	var out []*models.Chunk
	for _, s := range selected {
		if seen[s.ChunkKey] {
			continue
		}
		seen[s.ChunkKey] = true
		if c, ok := byKey[s.ChunkKey]; ok {
			out = append(out, c)
		}
	}
	return out
}

func chunkKeys(chunks []*models.Chunk) []string {
	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = c.ChunkKey
	}
	return keys
}
