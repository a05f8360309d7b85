package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyxon-ai/docqa/internal/answer"
	"github.com/pyxon-ai/docqa/internal/chunker"
	"github.com/pyxon-ai/docqa/internal/embedding"
	"github.com/pyxon-ai/docqa/internal/extract"
	"github.com/pyxon-ai/docqa/internal/ingest"
	"github.com/pyxon-ai/docqa/internal/retriever"
	"github.com/pyxon-ai/docqa/internal/storage"
	"github.com/pyxon-ai/docqa/internal/vector"
)

const e2eDimensions = 16

// contextEchoLLM answers with the first line of the prompt's context block,
// which is enough to check that the answer is grounded in retrieved text.
type contextEchoLLM struct {
	lastPrompt string
}

func (l *contextEchoLLM) Complete(ctx context.Context, prompt string) (string, error) {
	l.lastPrompt = prompt
	marker := "Context:\n"
	i := strings.Index(prompt, marker)
	if i < 0 {
		return "", errors.New("prompt has no context block")
	}
	rest := prompt[i+len(marker):]
	if j := strings.Index(rest, "\n"); j > 0 {
		return rest[:j], nil
	}
	return rest, nil
}

func (l *contextEchoLLM) ModelName() string { return "context-echo" }
func (l *contextEchoLLM) Close() error      { return nil }

type pipeline struct {
	ingestor  *ingest.Ingestor
	retriever *retriever.Retriever
	assembler *answer.Assembler
	storage   storage.Storage
	llm       *contextEchoLLM
	snapshot  string
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()
	snapshot := filepath.Join(dir, "index.bin")

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "docqa.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	// Size 30 keeps each short sentence in its own chunk, so a question that
	// repeats a sentence verbatim embeds identically to its chunk.
	splitter := chunker.NewRecursiveSplitter(30, 0)
	ing, err := ingest.New(extract.NewExtractor(), splitter, embedder, store, snapshot, nil)
	if err != nil {
		t.Fatal(err)
	}
	ret, err := retriever.New(embedder, snapshot, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	llmClient := &contextEchoLLM{}
	asm, err := answer.New(ret, llmClient, "", 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &pipeline{
		ingestor:  ing,
		retriever: ret,
		assembler: asm,
		storage:   store,
		llm:       llmClient,
		snapshot:  snapshot,
	}
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestE2E_UploadThenAsk(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	story := "The hunter's name is Omar. " +
		"He lived in a small village near the forest. " +
		"Every morning he walked the same path to check his traps."
	rec, err := p.ingestor.IngestFile(ctx, writeDoc(t, "story.txt", story))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ChunkCount == 0 {
		t.Fatal("no chunks indexed")
	}

	ans, err := p.assembler.Ask(ctx, "The hunter's name is Omar.", 3)
	if err != nil {
		t.Fatal(err)
	}
	// The question embeds identically to the sentence containing the name, so
	// that chunk must be the top source and appear first in the prompt.
	if len(ans.Sources) == 0 {
		t.Fatal("answer has no sources")
	}
	if !strings.Contains(ans.Sources[0].Chunk.Text, "Omar") {
		t.Errorf("top source = %q, want the chunk naming Omar", ans.Sources[0].Chunk.Text)
	}
	if ans.Sources[0].Relevance < 0.999 {
		t.Errorf("top relevance = %v, want ~1", ans.Sources[0].Relevance)
	}
	if !strings.Contains(ans.Text, "Omar") {
		t.Errorf("answer text = %q, not grounded in the retrieved chunk", ans.Text)
	}
	if !strings.Contains(p.llm.lastPrompt, "only the information in the context") {
		t.Error("prompt does not constrain the model to the context")
	}
}

func TestE2E_AskBeforeAnyUpload(t *testing.T) {
	p := newPipeline(t)
	_, err := p.assembler.Ask(context.Background(), "Anything at all?", 3)
	if !errors.Is(err, answer.ErrIndexNotReady) {
		t.Errorf("err = %v, want ErrIndexNotReady", err)
	}
	if p.llm.lastPrompt != "" {
		t.Error("model was called before any document was ingested")
	}
}

func TestE2E_UnsupportedFormatLeavesEverythingUntouched(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	_, err := p.ingestor.IngestFile(ctx, writeDoc(t, "table.csv", "a,b,c\n1,2,3"))
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if vector.SnapshotExists(p.snapshot) {
		t.Error("rejected upload created a snapshot")
	}
	count, err := p.storage.CountUploads(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rejected upload was recorded: count = %d", count)
	}
}

func TestE2E_SecondUploadDoesNotEvictFirst(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	first := "The hunter's name is Omar. He was known across the valley."
	second := "The baker's name is Samir. His bread was famous in the town."
	if _, err := p.ingestor.IngestFile(ctx, writeDoc(t, "hunter.txt", first)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ingestor.IngestFile(ctx, writeDoc(t, "baker.txt", second)); err != nil {
		t.Fatal(err)
	}

	results, err := p.retriever.Retrieve(ctx, "The hunter's name is Omar.", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Source != "hunter.txt" {
		t.Errorf("first upload not retrievable after second: %+v", results)
	}

	results, err = p.retriever.Retrieve(ctx, "The baker's name is Samir.", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Source != "baker.txt" {
		t.Errorf("second upload not retrievable: %+v", results)
	}
}

func TestE2E_EmptyDocumentShortCircuits(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	rec, err := p.ingestor.IngestFile(ctx, writeDoc(t, "blank.txt", "  \n\n\t "))
	if err != nil {
		t.Fatal(err)
	}
	if rec.ChunkCount != 0 {
		t.Errorf("chunk count = %d, want 0", rec.ChunkCount)
	}
	if vector.SnapshotExists(p.snapshot) {
		t.Error("empty document created a snapshot")
	}
	uploads, err := p.storage.ListUploads(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(uploads) != 1 || uploads[0].ChunkCount != 0 {
		t.Errorf("uploads = %+v", uploads)
	}
}

func TestE2E_RestartPreservesIndex(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	if _, err := p.ingestor.IngestFile(ctx, writeDoc(t, "story.txt", "The hunter's name is Omar.")); err != nil {
		t.Fatal(err)
	}

	// A fresh retriever over the same snapshot path stands in for a process
	// restart.
	fresh, err := retriever.New(embedding.NewMockEmbedder(e2eDimensions), p.snapshot, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := fresh.Retrieve(ctx, "The hunter's name is Omar.", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Relevance < 0.999 {
		t.Errorf("results after restart = %+v", results)
	}
}
