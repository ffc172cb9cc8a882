package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/tickq/internal/model"
	"github.com/seantiz/tickq/internal/store"
)

// listDrainsResponse wraps the paginated list response.
type listDrainsResponse struct {
	Drains []*model.DrainRecord `json:"drains"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func (s *Server) handleListDrains(w http.ResponseWriter, r *http.Request) {
	limit := listLimit(r)
	offset := parseIntQuery(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	drains, total, err := s.store.ListDrains(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list drains", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list drains")
		return
	}
	if drains == nil {
		drains = []*model.DrainRecord{}
	}

	s.writeJSON(w, http.StatusOK, listDrainsResponse{
		Drains: drains,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetDrain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetDrain(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "drain not found")
		return
	}
	if err != nil {
		s.logger.Error("get drain", "drain_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get drain")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}
