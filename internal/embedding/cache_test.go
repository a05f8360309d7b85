package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss on empty cache")
	}
	c.Set("a", []float32{1})
	v, ok := c.Get("a")
	if !ok || v[0] != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
}

func TestEmbeddingCache_Eviction(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a") // a is now most recently used
	c.Set("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
}

// Get promotes the entry in the LRU list, so concurrent readers contend on a
// mutation. Run with -race.
func TestEmbeddingCache_ConcurrentGet(t *testing.T) {
	c := NewEmbeddingCache(64)
	for i := 0; i < 32; i++ {
		c.Set(fmt.Sprintf("key-%d", i), []float32{float32(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("key-%d", i%32)
				if v, ok := c.Get(key); !ok || v == nil {
					t.Errorf("Get(%s) missed", key)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// countingEmbedder wraps MockEmbedder and counts inner batch calls and texts.
type countingEmbedder struct {
	*MockEmbedder
	batchTexts int
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchTexts += len(texts)
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_BatchMissesOnly(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.batchTexts != 2 {
		t.Errorf("inner texts = %d, want 2", inner.batchTexts)
	}

	second, err := e.EmbedBatch(ctx, []string{"y", "z", "x"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.batchTexts != 3 {
		t.Errorf("inner texts = %d, want 3 (only z is a miss)", inner.batchTexts)
	}
	if len(second) != 3 {
		t.Fatalf("len = %d", len(second))
	}
	// Order must match input, cache hits included.
	if second[2][0] != first[0][0] || second[0][0] != first[1][0] {
		t.Error("batch result order does not match input order")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "same text")
	b, _ := e.Embed(ctx, "same text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
	c, _ := e.Embed(ctx, "different text")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}
