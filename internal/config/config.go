// Package config provides configuration loading and structs for the docqa server.
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
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the upload database and index snapshot.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// EmbeddingConfig holds settings for the embedding service.
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// LLMConfig holds settings for the completion model.
type LLMConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// ChunkingConfig selects the splitting strategy and its parameters.
type ChunkingConfig struct {
	Strategy             string  `yaml:"strategy"`
	ChunkSize            int     `yaml:"chunk_size"`
	ChunkOverlap         int     `yaml:"chunk_overlap"`
	BreakpointPercentile float64 `yaml:"breakpoint_percentile"`
	BufferSize           int     `yaml:"buffer_size"`
}

// RetrievalConfig holds query-side settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directory  string `yaml:"directory"`
	DebounceMS int    `yaml:"debounce_ms"`
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
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	return &cfg, nil
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
