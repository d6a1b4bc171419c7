package retriever

import (
	"testing"

	"go.uber.org/zap"

	"github.com/medrag/consulta/internal/models"
	"github.com/medrag/consulta/internal/vector"
)

func intPtr(n int) *int { return &n }

func testCorpus() []*models.Chunk {
	return []*models.Chunk{
		{ChunkKey: "1::resumen", ChunkType: models.ChunkResumen},
		{ChunkKey: "1::evo:1", ChunkType: models.ChunkEvolucionDia, Day: intPtr(1)},
		{ChunkKey: "1::evo:3", ChunkType: models.ChunkEvolucionDia, Day: intPtr(3)},
		{ChunkKey: "1::labs", ChunkType: models.ChunkLaboratorios},
		{ChunkKey: "1::alta", ChunkType: models.ChunkAlta},
	}
}

func keysOf(chunks []*models.Chunk) []string {
	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = c.ChunkKey
	}
	return keys
}

func TestPrefilter_ByType(t *testing.T) {
	filter := &models.QueryFilter{Types: map[models.ChunkType]bool{models.ChunkAlta: true}}
	got := Prefilter(testCorpus(), filter)
	if len(got) != 1 || got[0].ChunkKey != "1::alta" {
		t.Errorf("got %v, want [1::alta]", keysOf(got))
	}
}

func TestPrefilter_ByDay(t *testing.T) {
	filter := &models.QueryFilter{
		Day:   intPtr(3),
		Types: map[models.ChunkType]bool{models.ChunkEvolucionDia: true},
	}
	got := Prefilter(testCorpus(), filter)
	if len(got) != 1 || got[0].ChunkKey != "1::evo:3" {
		t.Errorf("got %v, want [1::evo:3]", keysOf(got))
	}
}

func TestPrefilter_DayRestrictsToEvolucion(t *testing.T) {
	// A day filter drops even type-matching chunks of other kinds.
	filter := &models.QueryFilter{
		Day: intPtr(1),
		Types: map[models.ChunkType]bool{
			models.ChunkEvolucionDia: true,
			models.ChunkAlta:         true,
		},
	}
	got := Prefilter(testCorpus(), filter)
	if len(got) != 1 || got[0].ChunkKey != "1::evo:1" {
		t.Errorf("got %v, want [1::evo:1]", keysOf(got))
	}
}

func TestPrefilter_EmptyResultFallsBackToAll(t *testing.T) {
	filter := &models.QueryFilter{
		Day:   intPtr(99),
		Types: map[models.ChunkType]bool{models.ChunkEvolucionDia: true},
	}
	got := Prefilter(testCorpus(), filter)
	if len(got) != 5 {
		t.Errorf("unmatched filter should fall back to the full corpus, got %v", keysOf(got))
	}
}

func TestPrefilter_NoFilter(t *testing.T) {
	if got := Prefilter(testCorpus(), nil); len(got) != 5 {
		t.Errorf("nil filter should keep everything, got %d", len(got))
	}
	empty := &models.QueryFilter{Types: map[models.ChunkType]bool{}}
	if got := Prefilter(testCorpus(), empty); len(got) != 5 {
		t.Errorf("empty filter should keep everything, got %d", len(got))
	}
}

func TestRetrieve_ScoresOnlyCandidates(t *testing.T) {
	idx := vector.NewMemoryIndex()
	idx.Put("1::resumen", []float32{1, 0})
	idx.Put("1::alta", []float32{0, 1})
	r := New(idx, zap.NewNop())

	chunks := []*models.Chunk{
		{ChunkKey: "1::resumen", ChunkType: models.ChunkResumen},
		{ChunkKey: "1::alta", ChunkType: models.ChunkAlta},
	}
	filter := &models.QueryFilter{Types: map[models.ChunkType]bool{models.ChunkAlta: true}}

	// Query points at resumen, but the filter restricts scoring to alta.
	got := r.Retrieve([]float32{1, 0}, chunks, filter, Options{TopK: 10, SelectN: 3, Lambda: 0.7})
	if len(got) != 1 || got[0].ChunkKey != "1::alta" {
		t.Errorf("got %v, want only 1::alta", got)
	}
}

func TestRetrieve_NoVectorsForCandidatesScoresWholeIndex(t *testing.T) {
	idx := vector.NewMemoryIndex()
	idx.Put("1::resumen", []float32{1, 0})
	r := New(idx, zap.NewNop())

	chunks := []*models.Chunk{
		{ChunkKey: "1::resumen", ChunkType: models.ChunkResumen},
		{ChunkKey: "1::alta", ChunkType: models.ChunkAlta},
	}
	// alta passes the filter but has no vector yet.
	filter := &models.QueryFilter{Types: map[models.ChunkType]bool{models.ChunkAlta: true}}

	got := r.Retrieve([]float32{1, 0}, chunks, filter, Options{TopK: 10, SelectN: 3, Lambda: 0.7})
	if len(got) != 1 || got[0].ChunkKey != "1::resumen" {
		t.Errorf("got %v, want fallback to the whole index", got)
	}
}

func TestRetrieve_SelectNBoundsResult(t *testing.T) {
	idx := vector.NewMemoryIndex()
	idx.Put("a", []float32{1, 0})
	idx.Put("b", []float32{0.9, 0.436})
	idx.Put("c", []float32{0.8, 0.6})
	idx.Put("d", []float32{0, 1})
	r := New(idx, zap.NewNop())

	chunks := []*models.Chunk{
		{ChunkKey: "a"}, {ChunkKey: "b"}, {ChunkKey: "c"}, {ChunkKey: "d"},
	}
	got := r.Retrieve([]float32{1, 0}, chunks, nil, Options{TopK: 3, SelectN: 2, Lambda: 0.7})
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}
