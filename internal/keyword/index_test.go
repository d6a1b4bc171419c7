package keyword

import (
	"context"
	"testing"

	"github.com/medrag/consulta/internal/models"
)

func newTestIndex(t *testing.T) *ChunkIndex {
	t.Helper()
	idx, err := NewChunkIndex()
	if err != nil {
		t.Fatalf("failed to create index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestChunkIndex_IndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	chunks := []*models.Chunk{
		{ChunkKey: "1::evo:2", ChunkType: models.ChunkEvolucionDia, Text: "Se retira pleurostomía sin complicaciones"},
		{ChunkKey: "1::alta", ChunkType: models.ChunkAlta, Text: "Control con cardiología en 7 días"},
	}
	for _, c := range chunks {
		if err := idx.Index(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := idx.Search(ctx, "pleurostomía", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ChunkKey != "1::evo:2" {
		t.Errorf("hits = %v, want 1::evo:2", hits)
	}

	hits, err = idx.Search(ctx, "nada que ver aquí xyzzy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("unexpected hits %v", hits)
	}
}

func TestChunkIndex_Reindex(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	c := &models.Chunk{ChunkKey: "1::resumen", Text: "dolor torácico"}
	if err := idx.Index(ctx, c); err != nil {
		t.Fatal(err)
	}
	c.Text = "cefalea intensa"
	if err := idx.Index(ctx, c); err != nil {
		t.Fatal(err)
	}

	if hits, _ := idx.Search(ctx, "cefalea", 10); len(hits) != 1 {
		t.Errorf("new text should match, got %v", hits)
	}
	if hits, _ := idx.Search(ctx, "torácico", 10); len(hits) != 0 {
		t.Errorf("old text should no longer match, got %v", hits)
	}
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount = %d, want 1", n)
	}
}

func TestChunkIndex_Clear(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	if err := idx.Index(ctx, &models.Chunk{ChunkKey: "1::labs", Text: "hemoglobina"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Clear(); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.DocCount(); n != 0 {
		t.Errorf("DocCount after Clear = %d", n)
	}
	// Index must be usable after Clear.
	if err := idx.Index(ctx, &models.Chunk{ChunkKey: "2::labs", Text: "creatinina"}); err != nil {
		t.Fatal(err)
	}
	if hits, _ := idx.Search(ctx, "creatinina", 10); len(hits) != 1 {
		t.Errorf("hits after reuse = %v", hits)
	}
}
