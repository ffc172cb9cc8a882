// Package sim is a simulated single-threaded host runtime. It stands in for
// the real game engine: it owns a tick counter, runs the process hook once per
// tick on a locked OS thread and prints task failures as stack traces through
// its own logrus logger.
package sim

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/seantiz/tickq/internal/host"
)

// stackTraceProc is the host procedure failures are reported through.
const stackTraceProc = "/proc/stack_trace"

// Host is a simulated host with a stack-trace error sink.
type Host struct {
	tick     atomic.Uint64
	reported atomic.Int64
	detached atomic.Bool
	traces   *logrus.Logger
}

// Compile-time interface satisfaction check.
var _ host.Host = (*Host)(nil)

// NewHost creates a host whose stack traces are written to out as JSON.
func NewHost(out io.Writer) *Host {
	traces := logrus.New()
	traces.SetOutput(out)
	traces.SetFormatter(&logrus.JSONFormatter{})
	traces.SetLevel(logrus.ErrorLevel)
	return &Host{traces: traces}
}

// CurrentWorld implements host.Host.
func (h *Host) CurrentWorld() host.World {
	return host.StaticWorld(h.tick.Load())
}

// ReportError implements host.Host by printing a stack trace for message.
func (h *Host) ReportError(message string) error {
	if h.detached.Load() {
		return fmt.Errorf("find %s: %w", stackTraceProc, host.ErrSinkUnavailable)
	}
	h.traces.WithFields(logrus.Fields{
		"proc": stackTraceProc,
		"tick": h.tick.Load(),
	}).Error(message)
	h.reported.Add(1)
	return nil
}

// Detach removes the stack-trace procedure, as a host reload would. Every
// later ReportError fails.
func (h *Host) Detach() {
	h.detached.Store(true)
}

// Tick returns the current tick.
func (h *Host) Tick() uint64 {
	return h.tick.Load()
}

// Reported returns how many failures were printed.
func (h *Host) Reported() int64 {
	return h.reported.Load()
}

func (h *Host) advance() uint64 {
	return h.tick.Add(1)
}
