package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9090
storage:
  database_path: ./data/records.db
embedding:
  provider: mock
  dimensions: 16
llm:
  model: qwen2.5:1.5b-instruct
retrieval:
  top_k: 20
watch:
  inbox: /var/spool/consulta
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if want := filepath.Join(dir, "data/records.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Dimensions != 16 {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.LLM.Model != "qwen2.5:1.5b-instruct" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Retrieval.TopK != 20 {
		t.Errorf("TopK = %d", cfg.Retrieval.TopK)
	}
	if cfg.Watch.Inbox != "/var/spool/consulta" {
		t.Errorf("Inbox = %q", cfg.Watch.Inbox)
	}
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("Provider = %q, want default ollama", cfg.Embedding.Provider)
	}
	if cfg.LLM.MaxTokens != 128 || cfg.LLM.Temperature != 0.2 || cfg.LLM.TopP != 0.95 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Retrieval.TopK != 10 || cfg.Retrieval.SelectN != 3 || cfg.Retrieval.Lambda != 0.7 {
		t.Errorf("Retrieval = %+v", cfg.Retrieval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Model == "" {
		t.Error("defaults should set the embedding model")
	}
}

func TestExpandPath(t *testing.T) {
	if got := expandPath("/abs/path.db", "/cfg"); got != "/abs/path.db" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := expandPath("./data.db", "/cfg"); got != "/cfg/data.db" {
		t.Errorf("config-relative path = %q", got)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandPath("data.db", "/cfg"); got != filepath.Join(home, "data.db") {
		t.Errorf("home-relative path = %q", got)
	}
}
