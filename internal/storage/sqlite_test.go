package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/medrag/consulta/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testChunk(key string, typ models.ChunkType, day *int) *models.Chunk {
	return &models.Chunk{
		ChunkKey:   key,
		Text:       "texto de " + key,
		SourceHint: "[DOC 1 | " + string(typ) + "]",
		ChunkType:  typ,
		Day:        day,
	}
}

func TestSQLiteStorage_ChunkRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	day := 2

	if err := s.PutChunk(ctx, "1", testChunk("1::evo:2", models.ChunkEvolucionDia, &day)); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetChunk(ctx, "1::evo:2")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkKey != "1::evo:2" || got.ChunkType != models.ChunkEvolucionDia {
		t.Errorf("got %+v", got)
	}
	if got.Day == nil || *got.Day != 2 {
		t.Errorf("Day = %v, want 2", got.Day)
	}
	if got.Text != "texto de 1::evo:2" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestSQLiteStorage_GetChunkNotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetChunk(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing chunk")
	}
}

func TestSQLiteStorage_PutChunkReplaces(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	c := testChunk("1::resumen", models.ChunkResumen, nil)
	if err := s.PutChunk(ctx, "1", c); err != nil {
		t.Fatal(err)
	}
	c.Text = "texto nuevo"
	if err := s.PutChunk(ctx, "1", c); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChunk(ctx, "1::resumen")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "texto nuevo" {
		t.Errorf("Text = %q, want replacement", got.Text)
	}
	n, _ := s.CountChunks(ctx)
	if n != 1 {
		t.Errorf("CountChunks = %d, want 1", n)
	}
}

func TestSQLiteStorage_BatchPutAndList(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	chunks := []*models.Chunk{
		testChunk("1::resumen", models.ChunkResumen, nil),
		testChunk("1::labs", models.ChunkLaboratorios, nil),
		testChunk("1::alta", models.ChunkAlta, nil),
	}
	if err := s.BatchPutChunks(ctx, "1", chunks); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("ListChunks = %d, want 3", len(got))
	}
	for i, want := range []string{"1::resumen", "1::labs", "1::alta"} {
		if got[i].ChunkKey != want {
			t.Errorf("chunk %d = %q, want %q (insertion order)", i, got[i].ChunkKey, want)
		}
	}

	subset, err := s.GetChunksByKeys(ctx, []string{"1::alta", "1::resumen", "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if len(subset) != 2 || subset[0].ChunkKey != "1::resumen" || subset[1].ChunkKey != "1::alta" {
		t.Errorf("GetChunksByKeys = %v", subset)
	}
}

func TestSQLiteStorage_EmbeddingRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	in := &models.ChunkEmbedding{ChunkKey: "1::resumen", Dim: 4, Vec: []float32{0.1, -0.2, 0.3, 0.4}}
	if err := s.PutEmbedding(ctx, in); err != nil {
		t.Fatal(err)
	}

	embs, err := s.ListEmbeddings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 1 {
		t.Fatalf("ListEmbeddings = %d, want 1", len(embs))
	}
	got := embs[0]
	if got.ChunkKey != "1::resumen" || got.Dim != 4 || len(got.Vec) != 4 {
		t.Fatalf("got %+v", got)
	}
	for i := range in.Vec {
		if got.Vec[i] != in.Vec[i] {
			t.Errorf("vec[%d] = %v, want %v", i, got.Vec[i], in.Vec[i])
		}
	}
}

func TestSQLiteStorage_Clear(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	if err := s.PutChunk(ctx, "1", testChunk("1::resumen", models.ChunkResumen, nil)); err != nil {
		t.Fatal(err)
	}
	if err := s.PutEmbedding(ctx, &models.ChunkEmbedding{ChunkKey: "1::resumen", Dim: 1, Vec: []float32{1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearChunks(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearEmbeddings(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountChunks(ctx); n != 0 {
		t.Errorf("CountChunks = %d after clear", n)
	}
	if n, _ := s.CountEmbeddings(ctx); n != 0 {
		t.Errorf("CountEmbeddings = %d after clear", n)
	}
}

func TestSQLiteStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")
	ctx := context.Background()

	s1, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.PutChunk(ctx, "1", testChunk("1::alta", models.ChunkAlta, nil)); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.GetChunk(ctx, "1::alta")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkKey != "1::alta" {
		t.Errorf("got %+v", got)
	}
}
