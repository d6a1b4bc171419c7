package models

// SourceRef cites one chunk used to build an answer.
type SourceRef struct {
	ChunkKey   string    `json:"chunkKey"`
	SourceHint string    `json:"sourceHint"`
	ChunkType  ChunkType `json:"chunkType"`
	Day        *int      `json:"day,omitempty"`
}

// AskResponse is the validated answer for one question.
type AskResponse struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []*SourceRef `json:"sources"`
	// Fallback is true when the generated text failed validation and the
	// answer was built by deterministic extraction instead.
	Fallback  bool  `json:"fallback,omitempty"`
	QueryTime int64 `json:"query_time_ms"`
}

// IngestResponse reports the outcome of ingesting one record.
type IngestResponse struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

// SourceRefFromChunk builds the citation for a chunk.
func SourceRefFromChunk(c *Chunk) *SourceRef {
	return &SourceRef{
		ChunkKey:   c.ChunkKey,
		SourceHint: c.SourceHint,
		ChunkType:  c.ChunkType,
		Day:        c.Day,
	}
}
