// Package main is the consulta CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medrag/consulta/internal/config"
	"github.com/medrag/consulta/internal/embedding"
	"github.com/medrag/consulta/internal/engine"
	"github.com/medrag/consulta/internal/keyword"
	"github.com/medrag/consulta/internal/llm"
	"github.com/medrag/consulta/internal/models"
	"github.com/medrag/consulta/internal/queryfilter"
	"github.com/medrag/consulta/internal/server"
	"github.com/medrag/consulta/internal/storage"
	"github.com/medrag/consulta/internal/vector"
	"github.com/medrag/consulta/internal/watcher"
	"github.com/medrag/consulta/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/consulta/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "consulta server" from the project dir uses the
// project's config (including debug).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		cfg, err := config.LoadOrDefault("")
		if err != nil {
			return nil, "", err
		}
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err = config.Load(path)
			if err != nil {
				return nil, "", err
			}
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "chunks":
		runChunks()
	case "clear":
		runClear()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("consulta version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (retrieval details, watcher events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Inbox != "" {
		eng := components.Engine
		watchSvc := watcher.NewWatcher(cfg.Watch.Inbox, func(path string) {
			rec, err := readRecord(path)
			if err != nil {
				logger.Warn("inbox record rejected", zap.String("path", path), zap.Error(err))
				return
			}
			if _, err := eng.Ingest(context.Background(), rec); err != nil {
				logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
			}
		}, logger)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: consulta ingest [flags] <record.json>")
		os.Exit(1)
	}
	rec, err := readRecord(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read record: %v\n", err)
		os.Exit(1)
	}

	if *serverURL != "" {
		resp, err := ingestViaHTTP(*serverURL, rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Record ingested: %s (%d chunks)\n", resp.DocID, resp.Chunks)
		return
	}

	components, cleanup := mustInitialize(*configPath)
	defer cleanup()
	resp, err := components.Engine.Ingest(context.Background(), rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Record ingested: %s (%d chunks)\n", resp.DocID, resp.Chunks)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	topK := fs.Int("top-k", 0, "relevance shortlist size (default from server config)")
	selectN := fs.Int("select-n", 0, "chunks kept for the prompt (default from server config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: consulta ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: consulta ask [flags] <question>")
		os.Exit(1)
	}

	req := &models.AskRequest{Question: question, TopK: *topK, SelectN: *selectN}

	var resp *models.AskResponse
	var err error
	if *serverURL != "" {
		resp, err = askViaHTTP(*serverURL, req)
	} else {
		var components *Components
		var cleanup func()
		components, cleanup = mustInitialize(*configPath)
		defer cleanup()
		resp, err = components.Engine.Ask(context.Background(), req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(resp.Answer)
		if resp.Fallback {
			fmt.Println("\n(respuesta extraída de forma determinista)")
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runChunks() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: consulta chunks <search|get> [flags] <query-or-key>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 10, "number of search results")
	_ = fs.Parse(os.Args[3:])

	switch sub {
	case "search":
		if fs.NArg() < 1 {
			fmt.Println("Usage: consulta chunks search [flags] <query>")
			os.Exit(1)
		}
		query := strings.TrimSpace(strings.Join(fs.Args(), " "))
		u := fmt.Sprintf("%s/api/v1/chunks/search?q=%s&limit=%d", *serverURL, url.QueryEscape(query), *limit)
		body, err := getJSON(u)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(body))
	case "get":
		if fs.NArg() < 1 {
			fmt.Println("Usage: consulta chunks get [flags] <chunk-key>")
			os.Exit(1)
		}
		u := fmt.Sprintf("%s/api/v1/chunks/%s", *serverURL, url.PathEscape(fs.Arg(0)))
		body, err := getJSON(u)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Get failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(body))
	default:
		fmt.Printf("Unknown chunks subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/records", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Clear failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Println("Corpus cleared")
		return
	}

	components, cleanup := mustInitialize(*configPath)
	defer cleanup()
	if err := components.Engine.Clear(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Corpus cleared")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status engine.Status
	if *serverURL != "" {
		body, err := getJSON(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(body, &status); err != nil {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components, cleanup := mustInitialize(*configPath)
		defer cleanup()
		s, err := components.Engine.Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *s
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if status.DocID != "" {
			fmt.Printf("doc_id:           %s\n", status.DocID)
		}
		fmt.Printf("chunks:           %d   # stored chunks\n", status.Chunks)
		fmt.Printf("embeddings:       %d   # stored embeddings\n", status.Embeddings)
		fmt.Printf("vector_indexed:   %d   # vectors in memory\n", status.Indexed)
		fmt.Printf("keyword_indexed:  %d   # chunks in keyword index\n", status.Keyword)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func readRecord(path string) (*models.ClinicalRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec models.ClinicalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("invalid record JSON: %w", err)
	}
	return &rec, nil
}

func ingestViaHTTP(serverURL string, rec *models.ClinicalRecord) (*models.IngestResponse, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/records", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func askViaHTTP(serverURL string, req *models.AskRequest) (*models.AskResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func getJSON(u string) ([]byte, error) {
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Completer llm.Completer
	Keyword   *keyword.ChunkIndex
	Engine    *engine.Engine
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Completer != nil {
		_ = c.Completer.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
}

func mustInitialize(configPath string) (*Components, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := newEmbedder(&cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	completer, err := llm.NewOllamaCompleter(cfg.LLM.BaseURL, cfg.LLM.Model)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize completer: %w", err)
	}

	kw, err := keyword.NewChunkIndex()
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	opts := engine.Options{
		TopK:    cfg.Retrieval.TopK,
		SelectN: cfg.Retrieval.SelectN,
		Lambda:  cfg.Retrieval.Lambda,
		LLMParams: llm.Params{
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
		},
	}
	eng := engine.New(store, vector.NewMemoryIndex(), kw, embedder, completer, queryfilter.NewHeuristic(), opts, logger)
	if err := eng.Load(context.Background()); err != nil {
		_ = store.Close()
		_ = embedder.Close()
		_ = kw.Close()
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	return &Components{
		Storage:   store,
		Embedder:  embedder,
		Completer: completer,
		Keyword:   kw,
		Engine:    eng,
	}, nil
}

func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "ollama", "":
		inner, err := embedding.NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		return embedding.NewCachedEmbedder(inner, cfg.CacheSize), nil
	case "onnx":
		inner, err := embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Dimensions), nil
		}
		return embedding.NewCachedEmbedder(inner, cfg.CacheSize), nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

func printUsage() {
	fmt.Println(`consulta - Local QA over structured clinical records

Usage:
  consulta server [flags]            Start the HTTP server
  consulta ingest [flags] <file>     Ingest a clinical record JSON
  consulta ask [flags] <question>    Ask a question about the ingested record
  consulta chunks <search|get> ...   Inspect ingested chunks
  consulta clear [flags]             Drop the ingested corpus
  consulta status [flags]            Show corpus counters
  consulta version                   Show version
  consulta help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/consulta/config.yaml)
  --debug            Enable debug logging (retrieval details, watcher events, etc.)

Ingest/Ask/Clear/Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.

Ask Flags:
  --top-k int        Relevance shortlist size
  --select-n int     Chunks kept for the prompt
  --output string    Output format: text or json (default: text)

Chunks Flags:
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Number of search results (default: 10)

Examples:
  consulta server
  consulta ingest atencion-123.json
  consulta ask "¿Qué indicaciones de alta tiene?"
  consulta ask --output json "¿Qué pasó el día 3?"
  consulta chunks search pleurostomía
  consulta chunks get 123::alta
  consulta clear
  consulta status`)
}
