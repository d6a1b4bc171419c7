package models

// ChunkType identifies which section of the record a chunk was extracted from.
type ChunkType string

// The closed set of chunk types produced by the chunker.
const (
	ChunkResumen      ChunkType = "resumen"
	ChunkEvolucionDia ChunkType = "evolucion_dia"
	ChunkLaboratorios ChunkType = "laboratorios"
	ChunkAlta         ChunkType = "alta"
)

// Chunk is a named unit of extracted text. ChunkKey has the form
// "{docID}::{subKey}" and is the join key between the chunk store and the
// embedding store. Day is set only for evolucion_dia chunks.
type Chunk struct {
	ChunkKey   string    `json:"chunkKey"`
	Text       string    `json:"text"`
	SourceHint string    `json:"sourceHint"`
	ChunkType  ChunkType `json:"chunkType"`
	Day        *int      `json:"day,omitempty"`
}

// ChunkEmbedding is the stored vector for one chunk. Vec is L2-normalized at
// creation time so that dot product equals cosine similarity.
type ChunkEmbedding struct {
	ChunkKey string    `json:"chunkKey"`
	Dim      int       `json:"dim"`
	Vec      []float32 `json:"-"`
}
