package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/host"
	"github.com/seantiz/tickq/internal/model"
)

// DefaultSaturationWindow is how many tasks run between clock samples in a
// drain. The worst-case budget overrun is DefaultSaturationWindow-1 tasks.
const DefaultSaturationWindow = 5

// journalBufferSize bounds the drain records waiting to be written.
const journalBufferSize = 256

// ErrDrainInProgress is returned when a drain is started while another one is
// still running. Drains are confined to the host goroutine, so this indicates
// a host integration bug.
var ErrDrainInProgress = errors.New("drain already in progress")

// ErrClosed is returned by drains started after Shutdown, and wrapped by a
// drain that Shutdown interrupted.
var ErrClosed = errors.New("engine shut down")

// Journal persists finished drain sessions and the failures they observed.
type Journal interface {
	RecordDrain(ctx context.Context, rec *model.DrainRecord, failures []model.FailureRecord) error
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// SaturationWindow is the number of tasks executed between clock
	// samples. Defaults to DefaultSaturationWindow if zero or less.
	SaturationWindow int

	// Journal, if set, receives every drain session that did any work.
	// Records are written off the host goroutine.
	Journal Journal

	// FailureLogRates limits failure log lines per queue, as catrate rates.
	// Reports to the host sink are never limited. Nil disables limiting.
	// NewEngine panics if the rates are not valid catrate rates.
	FailureLogRates map[time.Duration]int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine drains the queues of a registry on the host goroutine.
type Engine struct {
	registry *callback.Registry
	host     host.Host
	logger   *slog.Logger
	broker   *FailureBroker
	limiter  *catrate.Limiter
	now      func() time.Time

	window   atomic.Int64
	draining atomic.Bool
	closed   atomic.Bool

	journal   Journal
	journalCh chan journalEntry
	wg        sync.WaitGroup
	stopped   chan struct{}
}

type journalEntry struct {
	rec      model.DrainRecord
	failures []model.FailureRecord
}

// NewEngine creates a drain engine for reg, reporting failures to h.
func NewEngine(reg *callback.Registry, h host.Host, logger *slog.Logger, opts Options) *Engine {
	e := &Engine{
		registry: reg,
		host:     h,
		logger:   logger,
		broker:   NewFailureBroker(),
		now:      opts.Clock,
		journal:  opts.Journal,
		stopped:  make(chan struct{}),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if len(opts.FailureLogRates) != 0 {
		e.limiter = catrate.NewLimiter(opts.FailureLogRates)
	}
	e.Tune(opts.SaturationWindow)

	if e.journal != nil {
		e.journalCh = make(chan journalEntry, journalBufferSize)
		e.wg.Go(e.journalLoop)
	}

	return e
}

// Broker returns the engine's failure broker for live subscriptions.
func (e *Engine) Broker() *FailureBroker {
	return e.broker
}

// Registry returns the registry the engine drains.
func (e *Engine) Registry() *callback.Registry {
	return e.registry
}

// Tune sets the saturation window. Values of zero or less restore the default.
// It is safe to call from any goroutine; the next drain picks it up.
func (e *Engine) Tune(window int) {
	if window <= 0 {
		window = DefaultSaturationWindow
	}
	e.window.Store(int64(window))
}

// SaturationWindow returns the current saturation window.
func (e *Engine) SaturationWindow() int {
	return int(e.window.Load())
}

// DrainAll runs every task queued in every queue, in registry order, with no
// time limit.
func (e *Engine) DrainAll(ctx context.Context) error {
	s, err := e.begin(model.ModeAll, "", 0, false)
	if err != nil {
		return err
	}
	defer e.finish(s)

	for _, q := range e.registry.Queues() {
		if !s.drain(ctx, q) {
			break
		}
	}
	s.exhaust()
	return s.err
}

// DrainQueue runs every task queued in one queue, with no time limit. A queue
// that does not exist is not created.
func (e *Engine) DrainQueue(ctx context.Context, id string) error {
	s, err := e.begin(model.ModeQueue, id, 0, false)
	if err != nil {
		return err
	}
	defer e.finish(s)

	if q, ok := e.registry.Get(id); ok {
		s.drain(ctx, q)
	}
	s.exhaust()
	return s.err
}

// DrainFor runs queued tasks round-robin across all queues until they are
// exhausted or budget has elapsed. It reports whether the drain stopped
// before running out of work.
func (e *Engine) DrainFor(ctx context.Context, budget time.Duration) (bool, error) {
	s, err := e.begin(model.ModeAllBudgeted, "", budget, true)
	if err != nil {
		return false, err
	}
	defer e.finish(s)

	s.roundRobin(ctx, e.registry.Queues())
	s.exhaust()
	return s.state != model.StateExhausted, s.err
}

// DrainQueueFor is DrainFor restricted to one queue. A queue that does not
// exist is not created.
func (e *Engine) DrainQueueFor(ctx context.Context, id string, budget time.Duration) (bool, error) {
	s, err := e.begin(model.ModeQueueBudgeted, id, budget, true)
	if err != nil {
		return false, err
	}
	defer e.finish(s)

	if q, ok := e.registry.Get(id); ok {
		s.drain(ctx, q)
	}
	s.exhaust()
	return s.state != model.StateExhausted, s.err
}

// Closed reports whether Shutdown has been called.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Shutdown closes the registry, discarding every pending task without running
// it, then closes the failure broker and flushes the journal. Producers get
// callback.ErrClosed from then on. It returns the number of tasks discarded.
//
// If a drain is in flight, Shutdown does not wait for it: the drain stops
// after its current task and finishes the teardown when it returns. This makes
// it safe to call from inside a task. Use Done to wait for the teardown.
// Calls after the first return 0.
func (e *Engine) Shutdown() int {
	if !e.closed.CompareAndSwap(false, true) {
		return 0
	}
	n := e.registry.Close()
	e.logger.Info("callback queues discarded", "discarded", n)

	if !e.draining.CompareAndSwap(false, true) {
		e.logger.Debug("teardown deferred to in-flight drain")
		return n
	}
	e.teardown()
	return n
}

// Done is closed once Shutdown has finished tearing the engine down.
func (e *Engine) Done() <-chan struct{} {
	return e.stopped
}

// teardown runs once, by whoever holds the drain flag after the engine
// closed. The flag is never released again.
func (e *Engine) teardown() {
	e.broker.Close()
	if e.journalCh != nil {
		close(e.journalCh)
	}
	e.wg.Wait()
	close(e.stopped)
}

// release gives up the drain flag. If Shutdown ran while the flag was held,
// the teardown it skipped happens here.
func (e *Engine) release() {
	e.draining.Store(false)
	if e.closed.Load() && e.draining.CompareAndSwap(false, true) {
		e.teardown()
	}
}

func (e *Engine) begin(mode, queueID string, budget time.Duration, budgeted bool) (*session, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if !e.draining.CompareAndSwap(false, true) {
		if e.closed.Load() {
			return nil, ErrClosed
		}
		return nil, ErrDrainInProgress
	}
	if e.closed.Load() {
		// Shutdown ran between the two checks and left the teardown to us.
		e.release()
		return nil, ErrClosed
	}

	start := e.now()
	world := e.host.CurrentWorld()
	s := &session{
		engine:   e,
		world:    world,
		start:    start,
		budget:   max(budget, 0),
		budgeted: budgeted,
		window:   e.SaturationWindow(),
		state:    model.StateRunning,
		rec: model.DrainRecord{
			ID:        model.NewID(),
			Mode:      mode,
			Tick:      world.Tick(),
			StartedAt: start.UTC(),
		},
	}
	if mode == model.ModeQueue || mode == model.ModeQueueBudgeted {
		s.rec.Queue = model.QueueLabel(queueID)
	}
	if budgeted {
		ms := s.budget.Milliseconds()
		s.rec.BudgetMS = &ms
	}
	return s, nil
}

func (e *Engine) finish(s *session) {
	defer e.release()

	elapsed := e.now().Sub(s.start)
	s.rec.Outcome = s.state
	s.rec.Executed = s.executed
	s.rec.Failed = s.failed
	s.rec.DurationMS = float64(elapsed) / float64(time.Millisecond)

	drainsTotal.WithLabelValues(s.rec.Mode, s.state).Inc()
	drainDuration.WithLabelValues(s.rec.Mode).Observe(elapsed.Seconds())

	// Idle sessions happen every tick and are not worth a log line or a row.
	if s.executed == 0 && s.state == model.StateExhausted {
		return
	}

	e.logger.Debug("drain finished",
		"drain_id", s.rec.ID,
		"mode", s.rec.Mode,
		"queue", s.rec.Queue,
		"tick", s.rec.Tick,
		"executed", s.executed,
		"failed", s.failed,
		"outcome", s.state,
		"duration_ms", s.rec.DurationMS,
	)
	if s.err != nil {
		e.logger.Error("drain aborted", "drain_id", s.rec.ID, "error", s.err)
	}

	if e.journalCh == nil {
		return
	}
	select {
	case e.journalCh <- journalEntry{rec: s.rec, failures: s.failures}:
	default:
		e.logger.Warn("journal backlog full, dropping drain record", "drain_id", s.rec.ID)
	}
}

func (e *Engine) journalLoop() {
	for entry := range e.journalCh {
		if err := e.journal.RecordDrain(context.Background(), &entry.rec, entry.failures); err != nil {
			e.logger.Error("failed to journal drain", "drain_id", entry.rec.ID, "error", err)
		}
	}
}

// logFailure writes a warning for a task failure unless the queue is over
// its log rate.
func (e *Engine) logFailure(rec *model.FailureRecord) {
	if e.limiter != nil {
		if _, ok := e.limiter.Allow(rec.Queue); !ok {
			return
		}
	}
	e.logger.Warn("deferred task failed",
		"queue", rec.Queue,
		"tick", rec.Tick,
		"drain_id", rec.DrainID,
		"error", rec.Message,
	)
}
