// Package main is the docqa CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/answer"
	"github.com/pyxon-ai/docqa/internal/bench"
	"github.com/pyxon-ai/docqa/internal/chunker"
	"github.com/pyxon-ai/docqa/internal/config"
	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/extract"
	"github.com/pyxon-ai/docqa/internal/ingest"
	"github.com/pyxon-ai/docqa/internal/llm"
	"github.com/pyxon-ai/docqa/internal/retriever"
	"github.com/pyxon-ai/docqa/internal/server"
	"github.com/pyxon-ai/docqa/internal/storage"
	"github.com/pyxon-ai/docqa/internal/watcher"
	"github.com/pyxon-ai/docqa/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docqa/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; real deployments set OPENAI_API_KEY in the environment.
	_ = godotenv.Load()

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
	case "search":
		runSearch()
	case "uploads":
		runUploads()
	case "status":
		runStatus()
	case "bench":
		runBench()
	case "version", "--version", "-v":
		fmt.Printf("docqa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`docqa - ask questions about your documents

Usage:
  docqa server  [-config path] [-debug]        start the HTTP API
  docqa ingest  [-config path] <file>...       ingest documents into the index
  docqa ask     [-config path] <question>      answer a question from the index
  docqa search  [-config path] [-k n] <query>  show matching chunks
  docqa uploads [-config path]                 list ingested documents
  docqa status  [-config path]                 show index status
  docqa bench   [-config path] -queries file   benchmark retrieval
  docqa version                                print version

OPENAI_API_KEY must be set (environment or .env file).
`)
}

// components bundles everything the subcommands wire up.
type components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Storage   storage.Storage
	Embedder  embedding.Embedder
	LLM       llm.Client
	Ingestor  *ingest.Ingestor
	Retriever *retriever.Retriever
	Assembler *answer.Assembler
}

func (c *components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, needLLM bool) (*components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	var embedder embedding.Embedder = openaiEmbedder
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	var client llm.Client
	fail := func(err error) (*components, error) {
		if client != nil {
			_ = client.Close()
		}
		_ = embedder.Close()
		_ = store.Close()
		return nil, err
	}

	if needLLM {
		client, err = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return fail(fmt.Errorf("create llm client: %w", err))
		}
	}

	splitter, err := chunker.NewSplitter(cfg.Chunking.Strategy, embedder, chunker.SplitterOptions{
		BreakpointPercentile: cfg.Chunking.BreakpointPercentile,
		BufferSize:           cfg.Chunking.BufferSize,
		ChunkSize:            cfg.Chunking.ChunkSize,
		ChunkOverlap:         cfg.Chunking.ChunkOverlap,
	})
	if err != nil {
		return fail(fmt.Errorf("create splitter: %w", err))
	}

	ingestor, err := ingest.New(extract.NewExtractor(), splitter, embedder, store, cfg.Storage.SnapshotPath, logger)
	if err != nil {
		return fail(err)
	}
	ret, err := retriever.New(embedder, cfg.Storage.SnapshotPath, cfg.Retrieval.TopK, logger)
	if err != nil {
		return fail(err)
	}

	c := &components{
		Config:    cfg,
		Logger:    logger,
		Storage:   store,
		Embedder:  embedder,
		LLM:       client,
		Ingestor:  ingestor,
		Retriever: ret,
	}
	if needLLM {
		c.Assembler, err = answer.New(ret, client, cfg.LLM.Language, cfg.Retrieval.TopK, logger)
		if err != nil {
			return fail(err)
		}
	}
	return c, nil
}

func setup(configPath string, debugFlag, needLLM bool) (*components, string) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	c, err := initializeComponents(cfg, logger, needLLM)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return c, resolvedPath
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c, resolvedPath := setup(*configPath, *debug, true)
	defer c.Close()
	defer c.Logger.Sync()

	c.Logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.String("chunking_strategy", c.Config.Chunking.Strategy))

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if c.Config.Watch.Directory != "" {
		extractor := extract.NewExtractor()
		w := watcher.NewWatcher(
			c.Config.Watch.Directory,
			extractor.Supported,
			func(path string) {
				if _, err := c.Ingestor.IngestFile(context.Background(), path); err != nil {
					c.Logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(c.Logger),
			watcher.WithDebounce(time.Duration(c.Config.Watch.DebounceMS)*time.Millisecond),
		)
		if err := w.Start(watchCtx); err != nil {
			c.Logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(c.Ingestor, c.Retriever, c.Assembler, c.Storage, c.Config, c.Logger)
	go func() {
		if err := srv.Start(); err != nil {
			c.Logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	c.Logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: docqa ingest [-config path] <file>...")
		os.Exit(1)
	}

	c, _ := setup(*configPath, false, false)
	defer c.Close()
	defer c.Logger.Sync()

	failed := 0
	for _, path := range fs.Args() {
		rec, err := c.Ingestor.IngestFile(context.Background(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: %d chunks\n", rec.Filename, rec.ChunkCount)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("k", 0, "number of context chunks (default from config)")
	showSources := fs.Bool("sources", false, "print source chunks with relevance")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: docqa ask [-config path] <question>")
		os.Exit(1)
	}

	c, _ := setup(*configPath, false, true)
	defer c.Close()
	defer c.Logger.Sync()

	ans, err := c.Assembler.Ask(context.Background(), question, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(ans.Text)
	if *showSources {
		fmt.Println()
		for _, src := range ans.Sources {
			fmt.Printf("  [%.2f] %s #%d: %s\n",
				src.Relevance, src.Chunk.Source, src.Chunk.Ordinal, utils.Truncate(src.Chunk.Text, 120))
		}
		fmt.Printf("  (%d ms)\n", ans.QueryTime)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	topK := fs.Int("k", 0, "number of results (default from config)")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: docqa search [-config path] [-k n] <query>")
		os.Exit(1)
	}

	c, _ := setup(*configPath, false, false)
	defer c.Close()
	defer c.Logger.Sync()

	results, err := c.Retriever.Retrieve(context.Background(), query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No results. Ingest a document first.")
		return
	}
	for i, res := range results {
		fmt.Printf("%d. [%.2f] %s #%d\n   %s\n",
			i+1, res.Relevance, res.Chunk.Source, res.Chunk.Ordinal, utils.Truncate(res.Chunk.Text, 200))
	}
}

func runUploads() {
	fs := flag.NewFlagSet("uploads", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	uploads, err := store.ListUploads(context.Background(), 0, 100)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list uploads: %v\n", err)
		os.Exit(1)
	}
	if len(uploads) == 0 {
		fmt.Println("No documents ingested yet.")
		return
	}
	for _, u := range uploads {
		fmt.Printf("%s  %s  %d chunks\n", u.UploadedAt.Format(time.RFC3339), u.Filename, u.ChunkCount)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	asJSON := fs.Bool("json", false, "output as JSON")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	count, err := store.CountUploads(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to count uploads: %v\n", err)
		os.Exit(1)
	}
	diskBytes, _ := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.SnapshotPath)

	status := map[string]interface{}{
		"uploads":          count,
		"snapshot_path":    cfg.Storage.SnapshotPath,
		"disk_usage_bytes": diskBytes,
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	fmt.Printf("uploads:    %d\n", count)
	fmt.Printf("snapshot:   %s\n", cfg.Storage.SnapshotPath)
	fmt.Printf("disk usage: %d bytes\n", diskBytes)
}

func runBench() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	queriesFile := fs.String("queries", "", "file with one query per line")
	topK := fs.Int("k", 0, "results per query (default from config)")
	_ = fs.Parse(os.Args[2:])

	if *queriesFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: docqa bench [-config path] -queries file")
		os.Exit(1)
	}
	data, err := os.ReadFile(*queriesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read queries: %v\n", err)
		os.Exit(1)
	}
	var queries []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			queries = append(queries, line)
		}
	}

	c, _ := setup(*configPath, false, false)
	defer c.Close()
	defer c.Logger.Sync()

	k := *topK
	if k <= 0 {
		k = c.Config.Retrieval.TopK
	}
	runner, err := bench.NewRunner(c.Retriever, k, c.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark setup failed: %v\n", err)
		os.Exit(1)
	}
	report, err := runner.Run(context.Background(), queries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	for _, res := range report.Results {
		if res.Err != "" {
			fmt.Printf("FAIL  %-40s  %s\n", utils.Truncate(res.Query, 40), res.Err)
			continue
		}
		fmt.Printf("%4dms  rel=%.3f  %s\n", res.LatencyMS, res.TopRelevance, utils.Truncate(res.Query, 60))
	}
	fmt.Printf("\nqueries: %d  failed: %d  mean latency: %.1fms  mean top relevance: %.3f\n",
		len(report.Results), report.FailedQueries, report.MeanLatencyMS, report.MeanTopRel)
}
