package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// contextValueRequest is the JSON body for PUT /v1/context/{key}.
type contextValueRequest struct {
	Value *string `json:"value"`
}

func (s *Server) handleGetContext(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.globals.Snapshot())
}

func (s *Server) handlePutContext(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req contextValueRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	s.engine.SetGlobalContext(key, *req.Value)
	s.logger.Info("global context updated", "key", key)
	s.writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": *req.Value})
}
