// Package storage defines the persistence interface for the upload log.
package storage

import (
	"context"

	"github.com/pyxon-ai/docqa/internal/models"
)

// Storage records which documents were ingested and when. The index snapshot
// holds the searchable content; this log only backs the uploads listing and
// status reporting.
type Storage interface {
	RecordUpload(ctx context.Context, rec *models.UploadRecord) error
	ListUploads(ctx context.Context, offset, limit int) ([]*models.UploadRecord, error)
	CountUploads(ctx context.Context) (int64, error)

	Close() error
}
