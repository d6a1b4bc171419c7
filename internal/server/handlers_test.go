package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/medrag/consulta/internal/config"
	"github.com/medrag/consulta/internal/embedding"
	"github.com/medrag/consulta/internal/engine"
	"github.com/medrag/consulta/internal/keyword"
	"github.com/medrag/consulta/internal/llm"
	"github.com/medrag/consulta/internal/models"
	"github.com/medrag/consulta/internal/queryfilter"
	"github.com/medrag/consulta/internal/storage"
	"github.com/medrag/consulta/internal/vector"
)

const sampleRecord = `{
	"id_atencion": 123,
	"motivo_ingreso": "Dolor torácico opresivo",
	"evolucion_resumen": [
		{"dia": 1, "texto": "Ingresa estable, se inicia monitorización."}
	]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kw, err := keyword.NewChunkIndex()
	if err != nil {
		t.Fatalf("failed to create keyword index: %v", err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	completer := llm.NewMockCompleter(
		"- uno\n- dos\n- tres\n- cuatro\nFuente: [DOC 123 | resumen]")
	eng := engine.New(store, vector.NewMemoryIndex(), kw,
		embedding.NewMockEmbedder(16), completer,
		queryfilter.NewHeuristic(), engine.DefaultOptions(), zap.NewNop())

	srv := NewServer(eng, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func ingestSample(t *testing.T, ts *httptest.Server) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/records", "application/json", strings.NewReader(sampleRecord))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestHandleIngest(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/records", "application/json", strings.NewReader(sampleRecord))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out models.IngestResponse
	decodeBody(t, resp, &out)
	if out.DocID != "123" || out.Chunks != 2 {
		t.Errorf("got %+v, want doc 123 with resumen and one evolution chunk", out)
	}
}

func TestHandleIngest_BadBody(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/records", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleAsk(t *testing.T) {
	ts := newTestServer(t)
	ingestSample(t, ts)

	resp, err := http.Post(ts.URL+"/api/v1/ask", "application/json",
		strings.NewReader(`{"question": "¿motivo de ingreso?"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out models.AskResponse
	decodeBody(t, resp, &out)
	if out.Fallback {
		t.Error("scripted valid output should not fall back")
	}
	if !strings.Contains(out.Answer, "Fuente: ") {
		t.Errorf("Answer = %q", out.Answer)
	}
	if len(out.Sources) == 0 {
		t.Error("expected sources")
	}
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/v1/ask", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHandleGetChunk(t *testing.T) {
	ts := newTestServer(t)
	ingestSample(t, ts)

	resp, err := http.Get(ts.URL + "/api/v1/chunks/123::resumen")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out models.Chunk
	decodeBody(t, resp, &out)
	if out.ChunkKey != "123::resumen" || out.ChunkType != models.ChunkResumen {
		t.Errorf("got %+v", out)
	}

	resp, err = http.Get(ts.URL + "/api/v1/chunks/123::nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing chunk status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleSearchChunks(t *testing.T) {
	ts := newTestServer(t)
	ingestSample(t, ts)

	resp, err := http.Get(ts.URL + "/api/v1/chunks/search?q=monitorizaci%C3%B3n")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Query   string            `json:"query"`
		Results []*keyword.Result `json:"results"`
	}
	decodeBody(t, resp, &out)
	if len(out.Results) != 1 || out.Results[0].ChunkKey != "123::evo:1" {
		t.Errorf("results = %v", out.Results)
	}

	resp, err = http.Get(ts.URL + "/api/v1/chunks/search")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleStatusAndClear(t *testing.T) {
	ts := newTestServer(t)
	ingestSample(t, ts)

	resp, err := http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	var st engine.Status
	decodeBody(t, resp, &st)
	if st.Chunks != 2 || st.Indexed != 2 {
		t.Errorf("status = %+v", st)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/records", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	decodeBody(t, resp, &st)
	if st.Chunks != 0 {
		t.Errorf("chunks after clear = %d", st.Chunks)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
