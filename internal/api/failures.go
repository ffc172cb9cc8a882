package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/seantiz/tickq/internal/model"
)

type listFailuresResponse struct {
	Failures []*model.FailureRecord `json:"failures"`
	Queue    string                 `json:"queue,omitempty"`
	Limit    int                    `json:"limit"`
}

func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	queue := r.URL.Query().Get("queue")
	limit := listLimit(r)

	failures, err := s.store.ListFailures(r.Context(), queue, limit)
	if err != nil {
		s.logger.Error("list failures", "queue", queue, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list failures")
		return
	}
	if failures == nil {
		failures = []*model.FailureRecord{}
	}

	s.writeJSON(w, http.StatusOK, listFailuresResponse{
		Failures: failures,
		Queue:    queue,
		Limit:    limit,
	})
}

// handleStreamFailures streams live task failures as server-sent events, one
// JSON FailureRecord per event. The optional queue parameter takes a queue
// label ("default" for the default queue).
func (s *Server) handleStreamFailures(w http.ResponseWriter, r *http.Request) {
	var (
		ch    <-chan model.FailureRecord
		unsub func()
	)
	if queue := r.URL.Query().Get("queue"); queue != "" {
		ch, unsub = s.engine.Broker().Subscribe(queue)
	} else {
		ch, unsub = s.engine.Broker().SubscribeAll()
	}
	defer unsub()

	failureStreams.Inc()
	defer failureStreams.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				// Engine shut down.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				s.logger.Error("encode failure event", "error", err)
				continue
			}
			if err := writeSSEEvent(w, "failure", string(data)); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
// data must not contain newlines.
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
