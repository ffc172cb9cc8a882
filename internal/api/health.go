package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealthz reports 503 once the engine has shut down.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.engine.Closed() {
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "shutting_down"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
