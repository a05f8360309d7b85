package retriever

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/vector"
)

// axisEmbedder maps known phrases to fixed unit vectors so distances in the
// tests are exact.
type axisEmbedder struct {
	vectors map[string][]float32
}

func (e *axisEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (e *axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e *axisEmbedder) Dimensions() int { return 3 }
func (e *axisEmbedder) Close() error    { return nil }

func writeSnapshot(t *testing.T, path string, chunks []models.Chunk, vecs [][]float32) {
	t.Helper()
	idx, err := vector.NewIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(context.Background(), chunks, vecs); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
}

func TestRetriever_RanksByRelevance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	writeSnapshot(t, path,
		[]models.Chunk{
			{ID: "hunter", Source: "story.txt", Text: "The hunter's name is Omar."},
			{ID: "forest", Source: "story.txt", Text: "The forest was quiet."},
			{ID: "recipe", Source: "food.txt", Text: "Add two cups of flour."},
		},
		[][]float32{
			{1, 0, 0},
			{0.8, 0.6, 0},
			{0, 0, 1},
		})

	emb := &axisEmbedder{vectors: map[string][]float32{
		"What is the hunter's name?": {1, 0, 0},
	}}
	r, err := New(emb, path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := r.Retrieve(context.Background(), "What is the hunter's name?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Chunk.ID != "hunter" {
		t.Errorf("top result = %q, want hunter", results[0].Chunk.ID)
	}
	if math.Abs(results[0].Relevance-1) > 1e-6 {
		t.Errorf("exact match relevance = %v, want 1", results[0].Relevance)
	}
	// Cosine 0.8 against the query axis.
	if math.Abs(results[1].Relevance-0.8) > 1e-5 {
		t.Errorf("second relevance = %v, want 0.8", results[1].Relevance)
	}
	// Orthogonal chunk clamps at 0, never negative.
	if results[2].Relevance != 0 {
		t.Errorf("orthogonal relevance = %v, want 0", results[2].Relevance)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Relevance > results[i-1].Relevance {
			t.Errorf("results not sorted by relevance at %d", i)
		}
	}
}

func TestRetriever_MissingSnapshotYieldsNoResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	r, err := New(embedding.NewMockEmbedder(3), path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Ready() {
		t.Error("Ready() = true with no snapshot")
	}
	results, err := r.Retrieve(context.Background(), "anything?", 3)
	if err != nil {
		t.Fatalf("missing snapshot should not error: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want none", results)
	}
}

func TestRetriever_CorruptSnapshotFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0644); err != nil {
		t.Fatal(err)
	}
	r, err := New(embedding.NewMockEmbedder(3), path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Retrieve(context.Background(), "anything?", 3); err == nil {
		t.Error("corrupt snapshot should fail the query")
	}
}

func TestRetriever_DefaultTopK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	chunks := make([]models.Chunk, 5)
	vecs := make([][]float32, 5)
	for i := range chunks {
		chunks[i] = models.Chunk{ID: string(rune('a' + i))}
		vecs[i] = []float32{1, 0, 0}
	}
	writeSnapshot(t, path, chunks, vecs)

	r, err := New(&axisEmbedder{}, path, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := r.Retrieve(context.Background(), "q", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("k=0 should fall back to configured topK 2, got %d", len(results))
	}
}

func TestRetriever_SeesNewSnapshotWithoutRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	emb := &axisEmbedder{}
	r, err := New(emb, path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := r.Retrieve(context.Background(), "q", 3)
	if err != nil || results != nil {
		t.Fatalf("before ingest: results=%v err=%v", results, err)
	}

	writeSnapshot(t, path,
		[]models.Chunk{{ID: "a", Text: "hello"}},
		[][]float32{{1, 0, 0}})

	results, err = r.Retrieve(context.Background(), "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("after ingest: results = %d, want 1", len(results))
	}
}
