// Package extract provides plain-text extraction from uploaded document files.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions the pipeline does not accept.
// It is non-retryable and must surface before any index mutation.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the extensions Extract accepts, with leading dot.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".txt"}
}

// Supported reports whether the file at path has an accepted extension.
func (e *Extractor) Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".doc", ".txt":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content.
// Dispatch is by extension: .pdf, .docx/.doc, and .txt are accepted; anything
// else fails with ErrUnsupportedFormat. An empty or whitespace-only document
// yields an empty string and no error.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !e.Supported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx", ".doc":
		return extractDOCX(content)
	case ".txt":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}
