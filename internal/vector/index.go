// Package vector provides the in-memory vector index and the similarity
// search (top-k + MMR) used for retrieval.
package vector

// Entry is one stored vector with its chunk key. Vectors are assumed
// L2-normalized by the embedding layer; the index never re-normalizes.
type Entry struct {
	ChunkKey string
	Vec      []float32
}

// Index stores at most one vector per chunk key. Vectors returned by GetAll
// and GetByKeys are read-only views; callers must not modify them. The index
// does not validate dimensions; the embedding step guarantees a single model
// (and so a single dimension) per corpus.
type Index interface {
	Put(chunkKey string, vec []float32)
	GetAll() []Entry
	GetByKeys(keys []string) []Entry
	Clear()
	Size() int
}
