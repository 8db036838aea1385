package api

import (
	"net/http"

	"github.com/seantiz/hostrunner/internal/hostbridge"
)

type healthResponse struct {
	Status     string             `json:"status"`
	Bridge     *hostbridge.Health `json:"bridge,omitempty"`
	QueueDepth int                `json:"queue_depth"`
}

// handleHealthz reports "ok" when the bridge is connected (or absent) and
// "degraded" otherwise. The endpoint itself always answers 200.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.bridge != nil {
		h := s.bridge.Health()
		resp.Bridge = &h
		if !h.Connected {
			resp.Status = "degraded"
		}
	}
	if s.engine != nil {
		resp.QueueDepth = s.engine.Len()
	}
	s.writeJSON(w, http.StatusOK, resp)
}
