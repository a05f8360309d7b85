// Package vector provides the persistent nearest-neighbor index over chunks.
package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pyxon-ai/docqa/internal/models"
)

// Snapshot load failures. A missing snapshot is the normal "nothing ingested
// yet" condition; a corrupt snapshot is fatal and surfaced verbatim.
var (
	ErrSnapshotMissing = errors.New("index snapshot does not exist")
	ErrSnapshotCorrupt = errors.New("index snapshot is corrupt")
)

// Entry is one indexed chunk with its embedding vector. The index owns its
// entries for its lifetime; entries are never mutated after Add.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Hit is a single search result: an entry and its raw distance to the query.
// The metric is squared L2 over unit-normalized vectors, which equals
// 2*(1-cosine) and stays within [0,4].
type Hit struct {
	Entry    *Entry
	Distance float64
}

// Index is an in-memory brute-force nearest-neighbor index. It is small-data
// honest: every query scans all entries, which is exact and fast enough for a
// single user's documents.
type Index struct {
	dimensions int
	entries    []Entry
	mu         sync.RWMutex
}

// NewIndex creates an empty index with the given vector dimension.
func NewIndex(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &Index{dimensions: dimensions}, nil
}

// Add appends chunks with their vectors. Chunks and vectors must pair up 1:1
// and every vector must match the index dimension.
func (x *Index) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, chunk := range chunks {
		if len(vectors[i]) != x.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), x.dimensions)
		}
		vec := make([]float32, x.dimensions)
		copy(vec, vectors[i])
		x.entries = append(x.entries, Entry{Chunk: chunk, Vector: vec})
	}
	return nil
}

// Search returns the k entries nearest to query by squared L2 distance,
// ascending (nearest first). If the index holds fewer than k entries, all of
// them are returned. An empty index returns no hits.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.entries) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(x.entries))
	for i := range x.entries {
		hits[i] = Hit{Entry: &x.entries[i], Distance: squaredL2(query, x.entries[i].Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of entries in the index.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Dimensions returns the index's vector dimension.
func (x *Index) Dimensions() int {
	return x.dimensions
}

// Entries returns the entries in insertion order. The returned slice must not
// be modified; it is used for snapshot round-trip checks and stats.
func (x *Index) Entries() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.entries
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}
