// Package answer turns retrieved chunks into a grounded natural-language
// answer via the language model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/llm"
	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/retriever"
)

// ErrIndexNotReady is returned when no document has been ingested yet. The
// model is never called in that case.
var ErrIndexNotReady = errors.New("no documents indexed yet, upload a file first")

// DefaultLanguage is the register the model is instructed to answer in.
const DefaultLanguage = "Modern Standard Arabic"

const promptTemplate = `Answer the question using only the information in the context below.
If the context does not contain the answer, say that the information is not available in the provided documents.
Answer in %s.

Context:
%s

Question: %s

Answer:`

// Assembler retrieves relevant chunks, builds a grounded prompt, and asks
// the language model for an answer constrained to the retrieved context.
type Assembler struct {
	retriever *retriever.Retriever
	client    llm.Client
	language  string
	topK      int
	logger    *zap.Logger
}

// New creates an Assembler. language defaults to DefaultLanguage; topK
// defaults to models.DefaultTopK.
func New(r *retriever.Retriever, client llm.Client, language string, topK int, logger *zap.Logger) (*Assembler, error) {
	if r == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if language == "" {
		language = DefaultLanguage
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		retriever: r,
		client:    client,
		language:  language,
		topK:      topK,
		logger:    logger,
	}, nil
}

// Ask answers the question from indexed documents. Returns ErrIndexNotReady
// before any upload; retrieval and model failures are surfaced as-is.
func (a *Assembler) Ask(ctx context.Context, question string, k int) (*models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if !a.retriever.Ready() {
		return nil, ErrIndexNotReady
	}
	if k <= 0 {
		k = a.topK
	}
	start := time.Now()

	scored, err := a.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(scored) == 0 {
		return nil, ErrIndexNotReady
	}

	prompt := BuildPrompt(question, scored, a.language)
	text, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}

	elapsed := time.Since(start)
	a.logger.Info("answered question",
		zap.Int("context_chunks", len(scored)),
		zap.Duration("elapsed", elapsed))
	return &models.Answer{
		Text:      strings.TrimSpace(text),
		Sources:   scored,
		QueryTime: elapsed.Milliseconds(),
	}, nil
}

// BuildPrompt renders the grounded prompt: retrieved chunks joined by blank
// lines in relevance order, then the question.
func BuildPrompt(question string, chunks []models.ScoredChunk, language string) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Text
	}
	contextBlock := strings.Join(texts, "\n\n")
	return fmt.Sprintf(promptTemplate, language, contextBlock, question)
}
