package models

import "fmt"

// DefaultTopK is the number of chunks retrieved per question when unset.
const DefaultTopK = 3

// AskRequest is a question against the indexed documents.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate ensures the request has a question and normalizes TopK.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	return nil
}

// SearchRequest is a raw retrieval request (scored chunks, no model call).
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate ensures the request has a query and normalizes TopK.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	return nil
}
