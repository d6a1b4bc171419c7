// Package config provides configuration loading and structs for the consulta server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedder settings. Provider is "ollama" (default),
// "onnx" (requires CGO), or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds the answer generation settings.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

// RetrievalConfig holds retrieval knobs.
type RetrievalConfig struct {
	TopK    int     `yaml:"top_k"`
	SelectN int     `yaml:"select_n"`
	Lambda  float64 `yaml:"lambda"`
}

// WatchConfig holds inbox watch settings. When Inbox is set, JSON records
// dropped into the directory are ingested automatically.
type WatchConfig struct {
	Inbox string `yaml:"inbox"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Watch.Inbox != "" {
		cfg.Watch.Inbox = expandPath(cfg.Watch.Inbox, configDir)
	}

	return &cfg, nil
}

// LoadOrDefault loads the config at path, or returns a default config when
// path is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}
	return Load(path)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
