// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pyxon-ai/docqa/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		chunk_count INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordUpload inserts an upload record. A missing ID or timestamp is filled in.
func (s *SQLiteStorage) RecordUpload(ctx context.Context, rec *models.UploadRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, filename, uploaded_at, chunk_count)
		 VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Filename, rec.UploadedAt, rec.ChunkCount,
	)
	return err
}

// ListUploads returns upload records newest first, with offset and limit.
func (s *SQLiteStorage) ListUploads(ctx context.Context, offset, limit int) ([]*models.UploadRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, uploaded_at, chunk_count
		 FROM uploads ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.UploadedAt, &rec.ChunkCount); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// CountUploads returns the total number of recorded uploads.
func (s *SQLiteStorage) CountUploads(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
