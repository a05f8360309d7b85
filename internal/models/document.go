// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Document is the raw text of one uploaded file plus its source identifier.
// Documents are read-only after creation.
type Document struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Chunk is a contiguous span of one document's text, the atomic retrieval unit.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// UploadRecord is one row of the upload metadata log.
type UploadRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	ChunkCount int       `json:"chunk_count"`
}
