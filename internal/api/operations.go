package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/hostrunner/internal/operation"
)

// operationResponse is a registered operation with its live queue state.
type operationResponse struct {
	operation.Descriptor
	Queued bool `json:"queued"`
}

func (s *Server) describe(d operation.Descriptor) operationResponse {
	return operationResponse{Descriptor: d, Queued: s.engine.IsQueued(d.Name)}
}

func (s *Server) handleListOperations(w http.ResponseWriter, _ *http.Request) {
	descs := s.registry.List()
	ops := make([]operationResponse, len(descs))
	for i, d := range descs {
		ops[i] = s.describe(d)
	}
	s.writeJSON(w, http.StatusOK, ops)
}

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	d, ok := s.registry.Describe(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "operation not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.describe(d))
}
