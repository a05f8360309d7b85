// Package ingest runs the upload pipeline: extract, chunk, embed, index,
// persist.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/chunker"
	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/extract"
	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/storage"
	"github.com/pyxon-ai/docqa/internal/vector"
)

// Ingestor turns an uploaded file into indexed chunks. Each ingest loads the
// current snapshot, appends the new chunks, and rewrites the snapshot
// atomically, so earlier uploads survive. Ingests are serialized: the HTTP
// upload handler and the inbox watcher share one Ingestor, and overlapping
// load-append-save sequences would overwrite each other's chunks.
type Ingestor struct {
	extractor    *extract.Extractor
	splitter     chunker.Splitter
	embedder     embedding.Embedder
	storage      storage.Storage
	snapshotPath string
	logger       *zap.Logger
	mu           sync.Mutex
}

// New creates an Ingestor writing to the snapshot at snapshotPath.
func New(
	extractor *extract.Extractor,
	splitter chunker.Splitter,
	embedder embedding.Embedder,
	store storage.Storage,
	snapshotPath string,
	logger *zap.Logger,
) (*Ingestor, error) {
	if extractor == nil || splitter == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("extractor, splitter, embedder and storage are required")
	}
	if snapshotPath == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		extractor:    extractor,
		splitter:     splitter,
		embedder:     embedder,
		storage:      store,
		snapshotPath: snapshotPath,
		logger:       logger,
	}, nil
}

// IngestFile ingests the file at path. Returns the upload record on success.
// Unsupported formats fail with extract.ErrUnsupportedFormat before anything
// is read. A file whose text is empty after extraction is logged with zero
// chunks and leaves the index untouched.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (*models.UploadRecord, error) {
	content, err := g.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	return g.ingest(ctx, filepath.Base(path), content)
}

// IngestBytes ingests in-memory content under the given filename, e.g. a
// multipart upload. The extension of filename selects the extractor.
func (g *Ingestor) IngestBytes(ctx context.Context, filename string, data []byte) (*models.UploadRecord, error) {
	content, err := g.extractor.ExtractBytes(data, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}
	return g.ingest(ctx, filename, content)
}

func (g *Ingestor) ingest(ctx context.Context, filename, content string) (*models.UploadRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	text := Preprocess(content)
	if text == "" {
		g.logger.Info("document has no extractable text", zap.String("filename", filename))
		rec := &models.UploadRecord{Filename: filename, ChunkCount: 0}
		if err := g.storage.RecordUpload(ctx, rec); err != nil {
			return nil, fmt.Errorf("record upload: %w", err)
		}
		return rec, nil
	}

	chunks, err := g.splitter.Split(ctx, filename, text)
	if err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}
	if len(chunks) == 0 {
		rec := &models.UploadRecord{Filename: filename, ChunkCount: 0}
		if err := g.storage.RecordUpload(ctx, rec); err != nil {
			return nil, fmt.Errorf("record upload: %w", err)
		}
		return rec, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	// Fail fast before touching the snapshot: nothing above has side effects,
	// so an embedding failure leaves the index exactly as it was.
	idx, err := vector.LoadOrNew(g.snapshotPath, g.embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if err := idx.Add(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}
	if err := idx.Save(g.snapshotPath); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}

	rec := &models.UploadRecord{Filename: filename, ChunkCount: len(chunks)}
	if err := g.storage.RecordUpload(ctx, rec); err != nil {
		return nil, fmt.Errorf("record upload: %w", err)
	}

	g.logger.Info("ingested document",
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
		zap.Int("index_size", idx.Size()),
		zap.Duration("elapsed", time.Since(start)))
	return rec, nil
}
