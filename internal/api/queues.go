package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/tickq/internal/callback"
)

type listQueuesResponse struct {
	Queues  []callback.QueueStats `json:"queues"`
	Pending int                   `json:"pending"`
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()
	var pending int
	for _, st := range stats {
		pending += st.Len
	}
	s.writeJSON(w, http.StatusOK, listQueuesResponse{
		Queues:  stats,
		Pending: pending,
	})
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	// The default queue is addressed by its label. Get never creates, so
	// probing unknown ids is harmless.
	q, ok := s.registry.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue not found")
		return
	}
	s.writeJSON(w, http.StatusOK, q.Stats())
}
