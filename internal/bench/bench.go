// Package bench measures retrieval quality and latency over a fixed query set.
package bench

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/retriever"
)

// Result holds the outcome of one benchmarked query.
type Result struct {
	Query        string  `json:"query"`
	LatencyMS    int64   `json:"latency_ms"`
	TopRelevance float64 `json:"top_relevance"`
	Hits         int     `json:"hits"`
	Err          string  `json:"error,omitempty"`
}

// Report aggregates a full benchmark run.
type Report struct {
	Results        []Result `json:"results"`
	MeanLatencyMS  float64  `json:"mean_latency_ms"`
	MeanTopRel     float64  `json:"mean_top_relevance"`
	FailedQueries  int      `json:"failed_queries"`
	TotalElapsedMS int64    `json:"total_elapsed_ms"`
}

// Runner executes queries against a retriever and collects timing and
// top-1 relevance per query.
type Runner struct {
	retriever *retriever.Retriever
	topK      int
	logger    *zap.Logger
}

// NewRunner creates a benchmark runner. topK bounds each retrieval.
func NewRunner(r *retriever.Retriever, topK int, logger *zap.Logger) (*Runner, error) {
	if r == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{retriever: r, topK: topK, logger: logger}, nil
}

// Run executes all queries sequentially and returns the aggregated report.
// Individual query failures are recorded, not fatal.
func (r *Runner) Run(ctx context.Context, queries []string) (*Report, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries to run")
	}
	report := &Report{Results: make([]Result, 0, len(queries))}
	start := time.Now()
	var latencySum int64
	var relSum float64

	for _, q := range queries {
		qStart := time.Now()
		scored, err := r.retriever.Retrieve(ctx, q, r.topK)
		latency := time.Since(qStart).Milliseconds()

		res := Result{Query: q, LatencyMS: latency, Hits: len(scored)}
		if err != nil {
			res.Err = err.Error()
			report.FailedQueries++
		} else if len(scored) > 0 {
			res.TopRelevance = scored[0].Relevance
		}
		report.Results = append(report.Results, res)
		latencySum += latency
		relSum += res.TopRelevance

		r.logger.Debug("benchmarked query",
			zap.String("query", q),
			zap.Int64("latency_ms", latency),
			zap.Float64("top_relevance", res.TopRelevance))
	}

	n := float64(len(queries))
	report.MeanLatencyMS = float64(latencySum) / n
	report.MeanTopRel = relSum / n
	report.TotalElapsedMS = time.Since(start).Milliseconds()
	return report, nil
}
