package answer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/retriever"
	"github.com/pyxon-ai/docqa/internal/vector"
)

// fakeLLM records the last prompt and returns a canned answer.
type fakeLLM struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) ModelName() string { return "fake" }
func (f *fakeLLM) Close() error      { return nil }

// fixedEmbedder returns the same unit vector for every text, so all indexed
// chunks match any question equally.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (fixedEmbedder) Dimensions() int { return 2 }
func (fixedEmbedder) Close() error    { return nil }

func newTestRetriever(t *testing.T, chunks []models.Chunk) *retriever.Retriever {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.bin")
	if chunks != nil {
		idx, err := vector.NewIndex(2)
		if err != nil {
			t.Fatal(err)
		}
		vecs := make([][]float32, len(chunks))
		for i := range vecs {
			vecs[i] = []float32{1, 0}
		}
		if err := idx.Add(context.Background(), chunks, vecs); err != nil {
			t.Fatal(err)
		}
		if err := idx.Save(path); err != nil {
			t.Fatal(err)
		}
	}
	r, err := retriever.New(fixedEmbedder{}, path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAssembler_AskGroundsPromptInContext(t *testing.T) {
	r := newTestRetriever(t, []models.Chunk{
		{ID: "a", Source: "story.txt", Text: "The hunter's name is Omar."},
		{ID: "b", Source: "story.txt", Text: "He lived near the forest."},
	})
	llmClient := &fakeLLM{reply: "اسم الصياد عمر."}
	a, err := New(r, llmClient, "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	ans, err := a.Ask(context.Background(), "What is the hunter's name?", 0)
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "اسم الصياد عمر." {
		t.Errorf("answer = %q", ans.Text)
	}
	if len(ans.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(ans.Sources))
	}
	if ans.QueryTime < 0 {
		t.Errorf("query time = %d", ans.QueryTime)
	}
	for _, want := range []string{
		"The hunter's name is Omar.",
		"He lived near the forest.",
		"What is the hunter's name?",
		DefaultLanguage,
		"only the information in the context",
	} {
		if !strings.Contains(llmClient.lastPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, llmClient.lastPrompt)
		}
	}
}

func TestAssembler_AskBeforeAnyUpload(t *testing.T) {
	a, err := New(newTestRetriever(t, nil), &fakeLLM{reply: "should not be called"}, "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Ask(context.Background(), "Anything?", 0)
	if !errors.Is(err, ErrIndexNotReady) {
		t.Errorf("err = %v, want ErrIndexNotReady", err)
	}
}

func TestAssembler_LLMFailurePropagates(t *testing.T) {
	r := newTestRetriever(t, []models.Chunk{{ID: "a", Text: "some text"}})
	a, err := New(r, &fakeLLM{err: fmt.Errorf("model overloaded")}, "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Ask(context.Background(), "Q?", 0)
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("err = %v", err)
	}
}

func TestAssembler_EmptyQuestion(t *testing.T) {
	r := newTestRetriever(t, []models.Chunk{{ID: "a", Text: "t"}})
	a, err := New(r, &fakeLLM{}, "", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ask(context.Background(), "   ", 0); err == nil {
		t.Error("blank question should error")
	}
}

func TestBuildPrompt_JoinsChunksInOrder(t *testing.T) {
	chunks := []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "first"}, Relevance: 0.9},
		{Chunk: models.Chunk{Text: "second"}, Relevance: 0.5},
	}
	p := BuildPrompt("q?", chunks, "English")
	if !strings.Contains(p, "first\n\nsecond") {
		t.Errorf("chunks not joined by blank line:\n%s", p)
	}
	if !strings.Contains(p, "Answer in English.") {
		t.Errorf("language instruction missing:\n%s", p)
	}
}
