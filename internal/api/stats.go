package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats. Journal figures cover
// every recorded drain; the rest is live engine state.
type statsResponse struct {
	Drains           int            `json:"drains"`
	ByMode           map[string]int `json:"by_mode"`
	ByOutcome        map[string]int `json:"by_outcome"`
	TasksExecuted    int            `json:"tasks_executed"`
	TasksFailed      int            `json:"tasks_failed"`
	AvgDurationMS    float64        `json:"avg_duration_ms"`
	Queues           int            `json:"queues"`
	Pending          int            `json:"pending"`
	SaturationWindow int            `json:"saturation_window"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetDrainStats(r.Context())
	if err != nil {
		s.logger.Error("get drain stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Drains:           stats.Total,
		ByMode:           stats.CountByMode,
		ByOutcome:        stats.CountByOutcome,
		TasksExecuted:    stats.TasksExecuted,
		TasksFailed:      stats.TasksFailed,
		AvgDurationMS:    stats.AvgDurationMS,
		Queues:           len(s.registry.Queues()),
		Pending:          s.registry.Pending(),
		SaturationWindow: s.engine.SaturationWindow(),
	})
}
