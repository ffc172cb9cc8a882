package engine_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/engine"
	"github.com/seantiz/tickq/internal/model"
)

func findFamily(t *testing.T, g prometheus.Gatherer, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestDrainMetricsRegistered(t *testing.T) {
	eng, reg, _ := newTestEngine(t, callback.DefaultCapacityPolicy(), engine.Options{})
	enqueue(t, reg, "metrics-q",
		callback.Thunk(func() (any, error) { return nil, nil }),
		callback.Thunk(func() (any, error) { return nil, callback.Failf("nope") }),
	)
	require.NoError(t, eng.DrainQueue(context.Background(), "metrics-q"))

	for _, name := range []string{
		"tickq_tasks_executed_total",
		"tickq_task_failures_total",
		"tickq_drains_total",
		"tickq_drain_duration_seconds",
	} {
		assert.NotNil(t, findFamily(t, prometheus.DefaultGatherer, name), "metric %q not registered", name)
	}

	mf := findFamily(t, prometheus.DefaultGatherer, "tickq_tasks_executed_total")
	require.NotNil(t, mf)
	var executed float64
	for _, m := range mf.GetMetric() {
		if labelValue(m, "queue") == "metrics-q" {
			executed = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), executed)
}

func TestDrainsTotalPreinitialized(t *testing.T) {
	mf := findFamily(t, prometheus.DefaultGatherer, "tickq_drains_total")
	require.NotNil(t, mf, "tickq_drains_total not registered")
	// 4 modes x 3 terminal states.
	assert.GreaterOrEqual(t, len(mf.GetMetric()), 12)
}

func TestQueueCollector(t *testing.T) {
	reg := callback.NewRegistry(callback.CapacityPolicy{
		DefaultCapacity: 1,
		EagerDefault:    true,
	})
	noop := callback.Thunk(func() (any, error) { return nil, nil })
	require.NoError(t, reg.Sender("").TrySend(noop))
	require.ErrorIs(t, reg.Sender("").TrySend(noop), callback.ErrQueueFull)
	require.NoError(t, reg.Sender("named").TrySend(noop))

	pr := prometheus.NewPedanticRegistry()
	pr.MustRegister(engine.NewQueueCollector(reg))

	depth := findFamily(t, pr, "tickq_queue_depth")
	require.NotNil(t, depth, "tickq_queue_depth not collected")
	got := map[string]float64{}
	for _, m := range depth.GetMetric() {
		got[labelValue(m, "queue")] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"default": 1, "named": 1}, got)

	rejected := findFamily(t, pr, "tickq_queue_rejected_total")
	require.NotNil(t, rejected, "tickq_queue_rejected_total not collected")
	for _, m := range rejected.GetMetric() {
		if labelValue(m, "queue") == "default" {
			assert.Equal(t, float64(1), m.GetCounter().GetValue())
		}
	}
}

func TestQueueCollectorDefaultLabelDoesNotCollide(t *testing.T) {
	reg := callback.NewRegistry(callback.DefaultCapacityPolicy())
	noop := callback.Thunk(func() (any, error) { return nil, nil })
	require.NoError(t, reg.Sender(model.DefaultQueueLabel).TrySend(noop))
	require.NoError(t, reg.Sender(model.DefaultQueue).TrySend(noop))
	require.NoError(t, reg.Sender("atmos").TrySend(noop))

	pr := prometheus.NewRegistry()
	pr.MustRegister(engine.NewQueueCollector(reg))

	mfs, err := pr.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		seen := make(map[string]bool)
		for _, m := range mf.GetMetric() {
			q := labelValue(m, "queue")
			assert.False(t, seen[q], "%s has two series for queue %q", mf.GetName(), q)
			seen[q] = true
		}
	}

	depth := findFamily(t, pr, "tickq_queue_depth")
	require.NotNil(t, depth)
	got := map[string]float64{}
	for _, m := range depth.GetMetric() {
		got[labelValue(m, "queue")] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"default": 2, "atmos": 1}, got)
}
