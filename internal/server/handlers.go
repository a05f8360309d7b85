package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pyxon-ai/docqa/internal/answer"
	"github.com/pyxon-ai/docqa/internal/extract"
	"github.com/pyxon-ai/docqa/internal/models"
	"github.com/pyxon-ai/docqa/internal/storage"
	"github.com/pyxon-ai/docqa/internal/vector"
)

// maxUploadBytes caps multipart uploads at 50 MiB.
const maxUploadBytes = 50 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	s.logger.Debug("upload request",
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)))

	rec, err := s.ingestor.IngestBytes(r.Context(), header.Filename, data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			s.respondError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		s.logger.Error("ingest failed", zap.String("filename", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.Int("top_k", req.TopK))

	ans, err := s.assembler.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		if errors.Is(err, answer.ErrIndexNotReady) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))

	results, err := s.retriever.Retrieve(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []models.ScoredChunk{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := s.storage.ListUploads(r.Context(), 0, 100)
	if err != nil {
		s.logger.Error("list uploads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if uploads == nil {
		uploads = []*models.UploadRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"uploads": uploads})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.storage.CountUploads(r.Context())
	if err != nil {
		s.logger.Error("status: count uploads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"uploads":     count,
		"index_ready": s.retriever.Ready(),
	}
	if vector.SnapshotExists(s.config.Storage.SnapshotPath) {
		if idx, err := vector.Load(s.config.Storage.SnapshotPath, 0); err == nil {
			resp["index_size"] = idx.Size()
		}
	}
	if diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.SnapshotPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]interface{}{
		"chunking_strategy":    s.config.Chunking.Strategy,
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"llm_model":            s.config.LLM.Model,
		"top_k":                s.config.Retrieval.TopK,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
