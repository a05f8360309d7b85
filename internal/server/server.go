// Package server provides the HTTP API for docqa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/answer"
	"github.com/pyxon-ai/docqa/internal/config"
	"github.com/pyxon-ai/docqa/internal/ingest"
	"github.com/pyxon-ai/docqa/internal/retriever"
	"github.com/pyxon-ai/docqa/internal/storage"
)

// Server is the HTTP server for the docqa API.
type Server struct {
	ingestor  *ingest.Ingestor
	retriever *retriever.Retriever
	assembler *answer.Assembler
	storage   storage.Storage
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingestor *ingest.Ingestor,
	ret *retriever.Retriever,
	asm *answer.Assembler,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor:  ingestor,
		retriever: ret,
		assembler: asm,
		storage:   store,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleUpload)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/uploads", s.handleListUploads)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
