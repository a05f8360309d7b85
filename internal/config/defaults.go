package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/docqa/data/docqa.db"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "/usr/local/var/docqa/data/index.bin"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Language == "" {
		cfg.LLM.Language = "Modern Standard Arabic"
	}
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "semantic"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 100
	}
	if cfg.Chunking.BreakpointPercentile == 0 {
		cfg.Chunking.BreakpointPercentile = 95
	}
	if cfg.Chunking.BufferSize == 0 {
		cfg.Chunking.BufferSize = 1
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
}
