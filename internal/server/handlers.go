package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medrag/consulta/internal/models"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var rec models.ClinicalRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest request", zap.String("doc_id", rec.DocID()))
	resp, err := s.engine.Ingest(r.Context(), &rec)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question))
	resp, err := s.engine.Ask(r.Context(), &req)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	chunk, err := s.engine.GetChunk(r.Context(), key)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "chunk not found")
		return
	}
	s.respondJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleSearchChunks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := s.engine.SearchChunks(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("chunk search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": results,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
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
