// Package retriever answers "which chunks are relevant to this question" by
// embedding the question and searching the index snapshot.
package retriever

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/vector"
)

// Retriever embeds queries and ranks indexed chunks by relevance. The
// snapshot on disk is the source of truth: every query loads it fresh, so a
// concurrent upload is picked up by the next query without coordination.
type Retriever struct {
	embedder     embedding.Embedder
	snapshotPath string
	topK         int
	logger       *zap.Logger
}

// New creates a Retriever reading from the snapshot at snapshotPath. topK is
// the default result count used when a query does not specify its own.
func New(embedder embedding.Embedder, snapshotPath string, topK int, logger *zap.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if snapshotPath == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder:     embedder,
		snapshotPath: snapshotPath,
		topK:         topK,
		logger:       logger,
	}, nil
}

// Ready reports whether an index snapshot exists, i.e. whether at least one
// document has been ingested.
func (r *Retriever) Ready() bool {
	return vector.SnapshotExists(r.snapshotPath)
}

// Retrieve returns up to k chunks relevant to the question, most relevant
// first. Relevance is max(0, 1 - distance/2), which for unit vectors is
// cosine similarity clamped at zero. A missing snapshot yields no results
// and no error; a corrupt snapshot is surfaced as vector.ErrSnapshotCorrupt.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if k <= 0 {
		k = r.topK
	}

	idx, err := vector.Load(r.snapshotPath, r.embedder.Dimensions())
	if errors.Is(err, vector.ErrSnapshotMissing) {
		r.logger.Debug("no index snapshot yet, returning no results")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := idx.Search(ctx, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		results = append(results, models.ScoredChunk{
			Chunk:     h.Entry.Chunk,
			Relevance: relevance(h.Distance),
		})
	}
	r.logger.Debug("retrieved chunks",
		zap.Int("requested", k),
		zap.Int("returned", len(results)),
		zap.Int("index_size", idx.Size()))
	return results, nil
}

// relevance maps a squared L2 distance over unit vectors to [0,1].
func relevance(distance float64) float64 {
	rel := 1 - distance/2
	if rel < 0 {
		return 0
	}
	return rel
}
