package models

// ScoredChunk pairs a retrieved chunk with its relevance in [0,1].
// Produced transiently per query; higher relevance means a closer match.
type ScoredChunk struct {
	Chunk     Chunk   `json:"chunk"`
	Relevance float64 `json:"relevance"`
}

// Answer is the result of a grounded question: the model's raw reply plus the
// chunks that were supplied as context, in retrieved order, for display and audit.
type Answer struct {
	Text    string        `json:"text"`
	Sources []ScoredChunk `json:"sources"`
	// QueryTime is the end-to-end wall clock in milliseconds (retrieval + model call).
	QueryTime int64 `json:"query_time_ms"`
}
