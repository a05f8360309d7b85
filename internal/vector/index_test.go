package vector

import (
	"context"
	"math"
	"testing"

	"github.com/pyxon-ai/docqa/internal/models"
)

func unitVec(dim int, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func addOne(t *testing.T, idx *Index, id string, vec []float32) {
	t.Helper()
	chunk := models.Chunk{ID: id, Source: "doc.txt", Text: "text for " + id}
	if err := idx.Add(context.Background(), []models.Chunk{chunk}, [][]float32{vec}); err != nil {
		t.Fatal(err)
	}
}

func TestIndex_SearchOrdersByDistance(t *testing.T) {
	idx, err := NewIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	addOne(t, idx, "far", unitVec(3, 2))
	addOne(t, idx, "near", []float32{0.8, 0.6, 0})
	addOne(t, idx, "exact", unitVec(3, 0))

	hits, err := idx.Search(context.Background(), unitVec(3, 0), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	wantOrder := []string{"exact", "near", "far"}
	for i, w := range wantOrder {
		if hits[i].Entry.Chunk.ID != w {
			t.Errorf("hit %d = %q, want %q", i, hits[i].Entry.Chunk.ID, w)
		}
	}
	if hits[0].Distance != 0 {
		t.Errorf("exact match distance = %v, want 0", hits[0].Distance)
	}
	// Unit vectors: squared L2 equals 2*(1-cosine). Orthogonal pair gives 2.
	if math.Abs(hits[2].Distance-2) > 1e-6 {
		t.Errorf("orthogonal distance = %v, want 2", hits[2].Distance)
	}
	if hits[0].Distance > hits[1].Distance || hits[1].Distance > hits[2].Distance {
		t.Errorf("hits not ascending: %v %v %v", hits[0].Distance, hits[1].Distance, hits[2].Distance)
	}
}

func TestIndex_SearchClampsK(t *testing.T) {
	idx, _ := NewIndex(2)
	addOne(t, idx, "a", unitVec(2, 0))
	addOne(t, idx, "b", unitVec(2, 1))

	hits, err := idx.Search(context.Background(), unitVec(2, 0), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("hits = %d, want all 2 entries", len(hits))
	}
}

func TestIndex_SearchEmptyIndex(t *testing.T) {
	idx, _ := NewIndex(2)
	hits, err := idx.Search(context.Background(), unitVec(2, 0), 3)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("empty index returned hits: %v", hits)
	}
}

func TestIndex_SearchValidation(t *testing.T) {
	idx, _ := NewIndex(3)
	addOne(t, idx, "a", unitVec(3, 0))

	if _, err := idx.Search(context.Background(), unitVec(2, 0), 1); err == nil {
		t.Error("dimension mismatch should error")
	}
	if _, err := idx.Search(context.Background(), unitVec(3, 0), 0); err == nil {
		t.Error("k=0 should error")
	}
}

func TestIndex_AddValidation(t *testing.T) {
	idx, _ := NewIndex(3)
	ctx := context.Background()

	err := idx.Add(ctx, []models.Chunk{{ID: "a"}}, nil)
	if err == nil {
		t.Error("length mismatch should error")
	}
	err = idx.Add(ctx, []models.Chunk{{ID: "a"}}, [][]float32{unitVec(2, 0)})
	if err == nil {
		t.Error("wrong dimension should error")
	}
	if idx.Size() != 0 {
		t.Errorf("failed Add mutated index: size = %d", idx.Size())
	}
}

func TestIndex_AddCopiesVectors(t *testing.T) {
	idx, _ := NewIndex(2)
	vec := []float32{1, 0}
	addOne(t, idx, "a", vec)
	vec[0] = 0
	vec[1] = 1

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Distance != 0 {
		t.Error("index entry shares memory with caller's vector")
	}
}

func TestNewIndex_InvalidDimension(t *testing.T) {
	for _, dim := range []int{0, -1} {
		if _, err := NewIndex(dim); err == nil {
			t.Errorf("NewIndex(%d) should error", dim)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical vectors cosine = %v", got)
	}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("orthogonal cosine = %v", got)
	}
	// Opposed vectors clamp to 0 rather than going negative.
	if got := CosineSimilarity(a, []float32{-1, 0}); got != 0 {
		t.Errorf("opposed cosine = %v, want 0", got)
	}
}
