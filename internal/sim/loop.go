package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/seantiz/tickq/internal/engine"
	"github.com/seantiz/tickq/internal/hook"
	"github.com/seantiz/tickq/internal/host"
)

// Loop runs host ticks at a fixed interval. Each tick calls the process hook
// with the tick budget, so all task execution happens on the loop's thread.
type Loop struct {
	host     *Host
	engine   *engine.Engine
	interval time.Duration
	budget   time.Duration
	logger   *slog.Logger
}

// NewLoop creates a tick loop for h draining eng.
func NewLoop(h *Host, eng *engine.Engine, interval, budget time.Duration, logger *slog.Logger) *Loop {
	return &Loop{
		host:     h,
		engine:   eng,
		interval: interval,
		budget:   budget,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled or the engine shuts down. It returns an
// error only if the host's error sink becomes unavailable.
func (l *Loop) Run(ctx context.Context) error {
	// The host owns one OS thread for its whole life.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("host loop started", "interval", l.interval, "budget", l.budget)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("host loop stopped", "tick", l.host.Tick())
			return nil
		case <-ticker.C:
			if _, err := l.Step(ctx); err != nil {
				if errors.Is(err, host.ErrSinkUnavailable) {
					return err
				}
				if errors.Is(err, engine.ErrClosed) {
					l.logger.Info("host loop stopped, engine shut down", "tick", l.host.Tick())
					return nil
				}
				if ctx.Err() != nil {
					continue
				}
				l.logger.Error("tick failed", "tick", l.host.Tick(), "error", err)
			}
		}
	}
}

// Step runs one tick: it advances the tick counter and processes callbacks
// within the budget. It reports whether work was left over.
func (l *Loop) Step(ctx context.Context) (bool, error) {
	tick := l.host.advance()

	res, err := hook.Process(ctx, l.engine, l.budget.Milliseconds())
	if err != nil {
		return true, fmt.Errorf("tick %d: %w", tick, err)
	}

	exceeded, _ := res.(bool)
	if exceeded {
		l.logger.Debug("tick budget exceeded, callbacks carried over",
			"tick", tick,
			"pending", l.engine.Registry().Pending(),
		)
	}
	return exceeded, nil
}
