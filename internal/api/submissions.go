package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/hostrunner/internal/engine"
	"github.com/seantiz/hostrunner/internal/model"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
	maxBatchSize     = 64
)

// Skip reasons reported by the batch endpoint.
const (
	skipNotFound    = "not_found"
	skipQueued      = "already_queued"
	skipUnreachable = "host_unreachable"
)

// submissionResponse describes an accepted submission and, when the caller
// waited for it, its outcome.
type submissionResponse struct {
	ID        string                 `json:"id"`
	Operation string                 `json:"operation"`
	Status    string                 `json:"status"`
	Result    *model.ExecutionResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// batchRequest is the JSON body for POST /v1/submissions.
type batchRequest struct {
	Operations []string `json:"operations"`
}

type skippedOperation struct {
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
}

type batchResponse struct {
	Submitted []submissionResponse `json:"submitted"`
	Skipped   []skippedOperation   `json:"skipped"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.registry.Has(name) {
		s.writeError(w, http.StatusNotFound, "operation not found")
		return
	}
	if s.engine.IsQueued(name) {
		s.writeError(w, http.StatusConflict, "operation already queued")
		return
	}

	sub := s.engine.Submit(name, nil)
	if sub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "host unreachable")
		return
	}

	resp := submissionResponse{ID: sub.ID, Operation: name, Status: model.ExecQueued}
	if r.URL.Query().Get("wait") != "true" {
		s.writeJSON(w, http.StatusAccepted, resp)
		return
	}

	result, err := sub.Future.Wait(r.Context())
	switch {
	case err == nil:
		resp.Status = model.ExecResolved
		if result.Status == model.StatusRejected {
			resp.Status = model.ExecRejected
		}
		resp.Result = &result
		s.writeJSON(w, http.StatusOK, resp)
	case r.Context().Err() != nil:
		// Client went away; the submission keeps running.
		s.logger.Debug("client stopped waiting for submission", "operation", name, "submission_id", sub.ID)
	case errors.Is(err, engine.ErrExecutionTimeout):
		resp.Status = model.ExecTimedOut
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusGatewayTimeout, resp)
	default:
		resp.Status = model.ExecFailed
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusBadGateway, resp)
	}
}

func (s *Server) handleBatchSubmit(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Operations) == 0 {
		s.writeError(w, http.StatusBadRequest, "operations is required")
		return
	}
	if len(req.Operations) > maxBatchSize {
		s.writeError(w, http.StatusBadRequest, "too many operations")
		return
	}

	resp := batchResponse{
		Submitted: []submissionResponse{},
		Skipped:   []skippedOperation{},
	}
	for _, name := range req.Operations {
		switch {
		case !s.registry.Has(name):
			resp.Skipped = append(resp.Skipped, skippedOperation{Operation: name, Reason: skipNotFound})
			continue
		case s.engine.IsQueued(name):
			resp.Skipped = append(resp.Skipped, skippedOperation{Operation: name, Reason: skipQueued})
			continue
		}

		sub := s.engine.Submit(name, nil)
		if sub == nil {
			resp.Skipped = append(resp.Skipped, skippedOperation{Operation: name, Reason: skipUnreachable})
			continue
		}
		resp.Submitted = append(resp.Submitted, submissionResponse{ID: sub.ID, Operation: name, Status: model.ExecQueued})
	}

	status := http.StatusAccepted
	if len(resp.Submitted) == 0 {
		status = http.StatusOK
	}
	s.writeJSON(w, status, resp)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
