// Package chunker splits document text into retrieval chunks. Two strategies
// are available behind one interface: a semantic splitter that breaks where
// the embedding distance between consecutive sentences jumps, and a
// deterministic recursive separator splitter with a fixed target size and overlap.
package chunker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/models"
)

// Splitter turns one document's text into an ordered chunk sequence.
// Empty or whitespace-only text yields nil chunks and no error.
type Splitter interface {
	Split(ctx context.Context, source, text string) ([]models.Chunk, error)
}

// Strategy names accepted by NewSplitter.
const (
	StrategySemantic  = "semantic"
	StrategyRecursive = "recursive"
)

// NewSplitter creates a splitter for the named strategy. The semantic strategy
// requires an embedder; the recursive strategy ignores it.
func NewSplitter(strategy string, embedder embedding.Embedder, opts SplitterOptions) (Splitter, error) {
	switch strategy {
	case StrategySemantic, "":
		if embedder == nil {
			return nil, fmt.Errorf("semantic strategy requires an embedder")
		}
		return NewSemanticSplitter(embedder, opts), nil
	case StrategyRecursive:
		return NewRecursiveSplitter(opts.ChunkSize, opts.ChunkOverlap), nil
	default:
		return nil, fmt.Errorf("unknown chunking strategy: %s (supported: semantic, recursive)", strategy)
	}
}

// SplitterOptions carries tuning shared by the strategies. Zero values mean defaults.
type SplitterOptions struct {
	// BreakpointPercentile is the semantic breakpoint threshold percentile (default 95).
	BreakpointPercentile float64
	// BufferSize is the number of neighbor sentences on each side included in a
	// sentence's embedding window (default 1).
	BufferSize int
	// ChunkSize is the recursive splitter's target chunk length in runes (default 1000).
	ChunkSize int
	// ChunkOverlap is the recursive splitter's overlap in runes (default 100).
	ChunkOverlap int
}

// sentenceEnd matches a run of sentence-ending punctuation, Latin or Arabic,
// plus any trailing closing quotes/brackets and whitespace.
var sentenceEnd = regexp.MustCompile(`[.!?؟۔…]+[)\]"'»]*\s*`)

// splitSentences segments text into trimmed, non-empty sentences. Paragraph
// breaks also end a sentence so headings without punctuation form their own unit.
func splitSentences(text string) []string {
	var sentences []string
	for _, para := range strings.Split(text, "\n\n") {
		rest := para
		for {
			loc := sentenceEnd.FindStringIndex(rest)
			if loc == nil {
				break
			}
			if s := strings.TrimSpace(rest[:loc[1]]); s != "" {
				sentences = append(sentences, s)
			}
			rest = rest[loc[1]:]
		}
		if s := strings.TrimSpace(rest); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// newChunk builds a chunk with a fresh ID in the source's namespace.
func newChunk(source string, ordinal int, text string) models.Chunk {
	return models.Chunk{
		ID:      fmt.Sprintf("%s_%s", source, uuid.New().String()[:8]),
		Source:  source,
		Ordinal: ordinal,
		Text:    text,
	}
}
