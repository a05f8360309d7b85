package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pyxon-ai/docqa/internal/models"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// DefaultSeparators is the ordered separator list for the recursive splitter:
// paragraph break, line break, sentence-ending punctuation (Latin and Arabic),
// word boundary, character boundary. Earlier separators are preferred so chunk
// boundaries fall on the largest structural unit that fits the target size.
var DefaultSeparators = []string{"\n\n", "\n", ".", "؟", "!", "،", " ", ""}

// RecursiveSplitter is the deterministic fixed-window strategy: it splits on
// the earliest separator that appears in the text, recursing into oversized
// segments with the remaining separators, then packs segments into chunks of
// at most chunkSize runes with chunkOverlap runes carried between neighbors.
// Same input, size, and overlap always produce the same chunks.
type RecursiveSplitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewRecursiveSplitter creates a recursive splitter with the given target
// chunk size and overlap, both in runes. A non-positive size uses the default
// (1000); an overlap that is negative or not smaller than the size is clamped
// to zero.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &RecursiveSplitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

// Split chunks text with the recursive separator strategy.
func (r *RecursiveSplitter) Split(ctx context.Context, source, text string) ([]models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pieces := r.splitText(text, r.separators)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, newChunk(source, len(chunks), piece))
	}
	return chunks, nil
}

// splitText splits text on the first separator present, merges undersized
// fragments back up to the target size, and recurses into oversized fragments
// with the remaining separators.
func (r *RecursiveSplitter) splitText(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	splits := splitKeep(text, sep)
	var final []string
	var good []string
	for _, s := range splits {
		if utf8.RuneCountInString(s) < r.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, r.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, s)
		} else {
			final = append(final, r.splitText(s, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, r.merge(good)...)
	}
	return final
}

// splitKeep splits text on sep keeping the separator attached to the preceding
// fragment, so concatenating the fragments reproduces the input. The empty
// separator splits into single runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, rn := range text {
			out = append(out, string(rn))
		}
		return out
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge packs fragments into chunks of at most chunkSize runes. When a chunk
// closes, leading fragments are dropped until at most chunkOverlap runes
// remain; those runes open the next chunk so boundary context is not lost.
func (r *RecursiveSplitter) merge(splits []string) []string {
	var docs []string
	var current []string
	total := 0
	for _, s := range splits {
		n := utf8.RuneCountInString(s)
		if total+n > r.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > r.chunkOverlap || (total+n > r.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}
