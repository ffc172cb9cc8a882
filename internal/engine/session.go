package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/host"
	"github.com/seantiz/tickq/internal/model"
)

// session is the state of one drain call. It lives on the host goroutine.
type session struct {
	engine   *Engine
	world    host.World
	start    time.Time
	budget   time.Duration
	budgeted bool

	// window and sinceCheck form the saturation timer: the clock is only
	// sampled when sinceCheck reaches window.
	window     int
	sinceCheck int

	state    string
	executed int
	failed   int
	failures []model.FailureRecord
	rec      model.DrainRecord
	err      error
}

func (s *session) transition(to string) {
	if !model.ValidTransition(s.state, to) {
		panic(fmt.Sprintf("engine: invalid drain transition %s -> %s", s.state, to))
	}
	s.state = to
}

// exhaust marks the session exhausted unless it already stopped.
func (s *session) exhaust() {
	if s.state == model.StateRunning {
		s.transition(model.StateExhausted)
	}
}

// drain runs the tasks currently queued in q. It returns false if the
// session stopped.
func (s *session) drain(ctx context.Context, q *callback.Queue) bool {
	label := model.QueueLabel(q.ID())
	for t := range q.TryPopAll() {
		if !s.run(label, t) || s.checkpoint(ctx) {
			return false
		}
	}
	return true
}

// roundRobin runs one task from each queue per pass until every queue's
// snapshot is exhausted or the session stops.
func (s *session) roundRobin(ctx context.Context, queues []*callback.Queue) {
	type cursor struct {
		label string
		next  func() (callback.Task, bool)
	}

	cursors := make([]cursor, 0, len(queues))
	stops := make([]func(), 0, len(queues))
	defer func() {
		for _, stop := range stops {
			stop()
		}
	}()

	for _, q := range queues {
		if q.Len() == 0 {
			continue
		}
		next, stop := iter.Pull(q.TryPopAll())
		stops = append(stops, stop)
		cursors = append(cursors, cursor{label: model.QueueLabel(q.ID()), next: next})
	}

	for len(cursors) > 0 {
		live := cursors[:0]
		for _, c := range cursors {
			t, ok := c.next()
			if !ok {
				continue
			}
			if !s.run(c.label, t) || s.checkpoint(ctx) {
				return
			}
			live = append(live, c)
		}
		cursors = live
	}
}

// checkpoint advances the saturation timer after one executed task. Once per
// window it checks for cancellation and, for budgeted sessions, the elapsed
// time. A shutdown stops the session at the next task boundary. It reports
// whether the session must stop.
func (s *session) checkpoint(ctx context.Context) bool {
	if s.engine.closed.Load() {
		s.err = fmt.Errorf("drain interrupted: %w", ErrClosed)
		s.transition(model.StateAborted)
		return true
	}

	s.sinceCheck++
	if s.sinceCheck < s.window {
		return false
	}
	s.sinceCheck = 0

	if err := ctx.Err(); err != nil {
		s.err = fmt.Errorf("drain interrupted: %w", err)
		s.transition(model.StateAborted)
		return true
	}
	if s.budgeted && s.engine.now().Sub(s.start) > s.budget {
		s.transition(model.StateBudgetExceeded)
		return true
	}
	return false
}

// run executes one task and handles its failure. It returns false if the
// host sink could not take the failure report.
func (s *session) run(queue string, t callback.Task) bool {
	err := invoke(t, s.world)
	s.executed++
	tasksExecuted.WithLabelValues(queue).Inc()
	if err == nil {
		return true
	}

	s.failed++
	taskFailures.WithLabelValues(queue).Inc()

	rec := model.FailureRecord{
		ID:        model.NewID(),
		DrainID:   s.rec.ID,
		Queue:     queue,
		Seq:       s.executed,
		Message:   err.Error(),
		Tick:      s.rec.Tick,
		CreatedAt: s.engine.now().UTC(),
	}
	s.failures = append(s.failures, rec)
	s.engine.broker.Publish(rec)
	s.engine.logFailure(&rec)

	if rerr := s.engine.host.ReportError(rec.Message); rerr != nil {
		if !errors.Is(rerr, host.ErrSinkUnavailable) {
			rerr = fmt.Errorf("%w: %w", host.ErrSinkUnavailable, rerr)
		}
		s.err = fmt.Errorf("report failure from %s: %w", queue, rerr)
		s.transition(model.StateAborted)
		return false
	}
	return true
}

// invoke runs t, converting a panic into a task failure.
func invoke(t callback.Task, w host.World) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = callback.Failf("task panicked: %v", r)
		}
	}()
	_, err = t.Run(w)
	return err
}
