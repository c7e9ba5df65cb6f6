// Package metrics provides a Prometheus-backed implementation of
// graph.Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ardenflow/graphrun/graph"
)

// PrometheusMetrics implements graph.Metrics using client_golang
// collectors, registered against reg (pass prometheus.DefaultRegisterer
// unless the caller needs an isolated registry, e.g. in tests).
type PrometheusMetrics struct {
	inflightNodes       prometheus.Gauge
	queueDepth          prometheus.Gauge
	stepLatency         prometheus.Histogram
	nodeLatency         *prometheus.HistogramVec
	retriesTotal        *prometheus.CounterVec
	mergeConflictsTotal *prometheus.CounterVec
	backpressureEvents  prometheus.Counter
	checkpointsTotal    *prometheus.CounterVec
	interruptsTotal     prometheus.Counter
}

// New builds and registers a PrometheusMetrics under reg.
func New(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		inflightNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphrun_inflight_nodes",
			Help: "Number of node invocations currently executing.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "graphrun_queue_depth",
			Help: "Number of tasks waiting for a free worker slot.",
		}),
		stepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphrun_step_latency_seconds",
			Help:    "Wall-clock duration of one super-step.",
			Buckets: prometheus.DefBuckets,
		}),
		nodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphrun_node_latency_seconds",
			Help:    "Wall-clock duration of one node invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrun_retries_total",
			Help: "Node invocation retries, by node.",
		}, []string{"node"}),
		mergeConflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrun_merge_conflicts_total",
			Help: "Replace-channel conflicts, by channel.",
		}, []string{"channel"}),
		backpressureEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphrun_backpressure_events_total",
			Help: "Times a super-step waited for a free worker slot.",
		}),
		checkpointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrun_checkpoints_total",
			Help: "Checkpoints persisted, by durability mode.",
		}, []string{"mode"}),
		interruptsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "graphrun_interrupts_total",
			Help: "Runs suspended pending human review.",
		}),
	}

	collectors := []prometheus.Collector{
		m.inflightNodes, m.queueDepth, m.stepLatency, m.nodeLatency,
		m.retriesTotal, m.mergeConflictsTotal, m.backpressureEvents,
		m.checkpointsTotal, m.interruptsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) InflightNodes(delta int) { m.inflightNodes.Add(float64(delta)) }
func (m *PrometheusMetrics) QueueDepth(depth int)    { m.queueDepth.Set(float64(depth)) }
func (m *PrometheusMetrics) StepLatency(d time.Duration) {
	m.stepLatency.Observe(d.Seconds())
}
func (m *PrometheusMetrics) NodeLatency(node string, d time.Duration) {
	m.nodeLatency.WithLabelValues(node).Observe(d.Seconds())
}
func (m *PrometheusMetrics) RetriesTotal(node string) { m.retriesTotal.WithLabelValues(node).Inc() }
func (m *PrometheusMetrics) MergeConflictsTotal(channel string) {
	m.mergeConflictsTotal.WithLabelValues(channel).Inc()
}
func (m *PrometheusMetrics) BackpressureEvents() { m.backpressureEvents.Inc() }
func (m *PrometheusMetrics) CheckpointsTotal(mode graph.DurabilityMode) {
	m.checkpointsTotal.WithLabelValues(mode.String()).Inc()
}
func (m *PrometheusMetrics) InterruptsTotal() { m.interruptsTotal.Inc() }
