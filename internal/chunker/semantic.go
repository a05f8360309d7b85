package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/vector"
	"github.com/pyxon-ai/docqa/pkg/utils"
)

const (
	defaultBreakpointPercentile = 95.0
	defaultBufferSize           = 1
)

// SemanticSplitter breaks text where the embedding distance between
// consecutive sentence windows exceeds a percentile threshold computed from
// the document's own distance distribution, so the cutoff adapts per document
// instead of using a fixed value.
type SemanticSplitter struct {
	embedder   embedding.Embedder
	percentile float64
	bufferSize int
}

// NewSemanticSplitter creates a semantic splitter over the given embedder.
func NewSemanticSplitter(embedder embedding.Embedder, opts SplitterOptions) *SemanticSplitter {
	percentile := opts.BreakpointPercentile
	if percentile <= 0 || percentile > 100 {
		percentile = defaultBreakpointPercentile
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &SemanticSplitter{
		embedder:   embedder,
		percentile: percentile,
		bufferSize: bufferSize,
	}
}

// Split segments text into sentences, embeds a sliding window around each,
// and emits one chunk per run of sentences between breakpoints.
func (s *SemanticSplitter) Split(ctx context.Context, source, text string) ([]models.Chunk, error) {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	if len(sentences) == 1 {
		return []models.Chunk{newChunk(source, 0, sentences[0])}, nil
	}

	windows := make([]string, len(sentences))
	for i := range sentences {
		lo := i - s.bufferSize
		if lo < 0 {
			lo = 0
		}
		hi := i + s.bufferSize + 1
		if hi > len(sentences) {
			hi = len(sentences)
		}
		windows[i] = strings.Join(sentences[lo:hi], " ")
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, windows)
	if err != nil {
		return nil, fmt.Errorf("embed sentence windows: %w", err)
	}

	distances := make([]float64, len(sentences)-1)
	for i := range distances {
		distances[i] = 1 - vector.CosineSimilarity(embeddings[i], embeddings[i+1])
	}
	threshold := utils.Percentile(distances, s.percentile)

	var chunks []models.Chunk
	start := 0
	for i, d := range distances {
		if d > threshold {
			chunks = append(chunks, newChunk(source, len(chunks), strings.Join(sentences[start:i+1], " ")))
			start = i + 1
		}
	}
	chunks = append(chunks, newChunk(source, len(chunks), strings.Join(sentences[start:], " ")))
	return chunks, nil
}
