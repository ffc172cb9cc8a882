package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/tickq/internal/callback"
	"github.com/seantiz/tickq/internal/model"
)

var (
	tasksExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickq_tasks_executed_total",
			Help: "Total number of deferred tasks executed on the host goroutine.",
		},
		[]string{"queue"},
	)

	taskFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickq_task_failures_total",
			Help: "Total number of deferred tasks that failed and were reported to the host.",
		},
		[]string{"queue"},
	)

	drainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickq_drains_total",
			Help: "Total number of drain sessions, by mode and terminal state.",
		},
		[]string{"mode", "outcome"},
	)

	drainDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tickq_drain_duration_seconds",
			Help:    "Wall-clock duration of drain sessions, in seconds.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(tasksExecuted)
	prometheus.MustRegister(taskFailures)
	prometheus.MustRegister(drainsTotal)
	prometheus.MustRegister(drainDuration)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup.
	for _, mode := range []string{model.ModeAll, model.ModeQueue, model.ModeAllBudgeted, model.ModeQueueBudgeted} {
		for _, outcome := range []string{model.StateExhausted, model.StateBudgetExceeded, model.StateAborted} {
			drainsTotal.WithLabelValues(mode, outcome)
		}
	}
}

var (
	queueDepthDesc = prometheus.NewDesc(
		"tickq_queue_depth",
		"Number of tasks currently waiting in a callback queue.",
		[]string{"queue"}, nil,
	)
	queueRejectedDesc = prometheus.NewDesc(
		"tickq_queue_rejected_total",
		"Total number of tasks rejected by a full bounded queue.",
		[]string{"queue"}, nil,
	)
	queueDiscardedDesc = prometheus.NewDesc(
		"tickq_queue_discarded_total",
		"Total number of tasks discarded without execution at shutdown.",
		[]string{"queue"}, nil,
	)
)

// QueueCollector exports per-queue gauges read from a registry at scrape time.
type QueueCollector struct {
	registry *callback.Registry
}

// Compile-time interface satisfaction check.
var _ prometheus.Collector = (*QueueCollector)(nil)

// NewQueueCollector creates a collector for the queues of reg.
func NewQueueCollector(reg *callback.Registry) *QueueCollector {
	return &QueueCollector{registry: reg}
}

// Describe implements prometheus.Collector.
func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queueDepthDesc
	ch <- queueRejectedDesc
	ch <- queueDiscardedDesc
}

// Collect implements prometheus.Collector.
func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.registry.Stats() {
		ch <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(st.Len), st.Name)
		ch <- prometheus.MustNewConstMetric(queueRejectedDesc, prometheus.CounterValue, float64(st.Rejected), st.Name)
		ch <- prometheus.MustNewConstMetric(queueDiscardedDesc, prometheus.CounterValue, float64(st.Discarded), st.Name)
	}
}
