package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ardenflow/graphrun/graph"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestPrometheusMetrics_ImplementsInterface(t *testing.T) {
	var _ graph.Metrics = (*PrometheusMetrics)(nil)
}

func TestPrometheusMetrics_Register_RejectsDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New() on the same registry should fail, got nil error")
	}
}

func TestPrometheusMetrics_InflightNodes(t *testing.T) {
	m := newTestMetrics(t)
	m.InflightNodes(3)
	m.InflightNodes(-1)
	if got := testutil.ToFloat64(m.inflightNodes); got != 2 {
		t.Errorf("inflightNodes = %v, want 2", got)
	}
}

func TestPrometheusMetrics_QueueDepth(t *testing.T) {
	m := newTestMetrics(t)
	m.QueueDepth(7)
	if got := testutil.ToFloat64(m.queueDepth); got != 7 {
		t.Errorf("queueDepth = %v, want 7", got)
	}
	m.QueueDepth(2)
	if got := testutil.ToFloat64(m.queueDepth); got != 2 {
		t.Errorf("queueDepth after overwrite = %v, want 2", got)
	}
}

func TestPrometheusMetrics_StepLatency(t *testing.T) {
	m := newTestMetrics(t)
	m.StepLatency(250 * time.Millisecond)
	if got := testutil.CollectAndCount(m.stepLatency); got != 1 {
		t.Errorf("stepLatency observation count = %d, want 1", got)
	}
}

func TestPrometheusMetrics_NodeLatency_PerNodeLabel(t *testing.T) {
	m := newTestMetrics(t)
	m.NodeLatency("a", 10*time.Millisecond)
	m.NodeLatency("b", 20*time.Millisecond)
	if got := testutil.CollectAndCount(m.nodeLatency); got != 2 {
		t.Errorf("nodeLatency series count = %d, want 2", got)
	}
}

func TestPrometheusMetrics_RetriesTotal(t *testing.T) {
	m := newTestMetrics(t)
	m.RetriesTotal("worker")
	m.RetriesTotal("worker")
	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues("worker")); got != 2 {
		t.Errorf("retriesTotal[worker] = %v, want 2", got)
	}
}

func TestPrometheusMetrics_MergeConflictsTotal(t *testing.T) {
	m := newTestMetrics(t)
	m.MergeConflictsTotal("messages")
	if got := testutil.ToFloat64(m.mergeConflictsTotal.WithLabelValues("messages")); got != 1 {
		t.Errorf("mergeConflictsTotal[messages] = %v, want 1", got)
	}
}

func TestPrometheusMetrics_BackpressureEvents(t *testing.T) {
	m := newTestMetrics(t)
	m.BackpressureEvents()
	m.BackpressureEvents()
	m.BackpressureEvents()
	if got := testutil.ToFloat64(m.backpressureEvents); got != 3 {
		t.Errorf("backpressureEvents = %v, want 3", got)
	}
}

func TestPrometheusMetrics_CheckpointsTotal_ByDurabilityMode(t *testing.T) {
	m := newTestMetrics(t)
	m.CheckpointsTotal(graph.DurabilitySync)
	m.CheckpointsTotal(graph.DurabilitySync)
	m.CheckpointsTotal(graph.DurabilityAsync)

	if got := testutil.ToFloat64(m.checkpointsTotal.WithLabelValues(graph.DurabilitySync.String())); got != 2 {
		t.Errorf("checkpointsTotal[sync] = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.checkpointsTotal.WithLabelValues(graph.DurabilityAsync.String())); got != 1 {
		t.Errorf("checkpointsTotal[async] = %v, want 1", got)
	}
}

func TestPrometheusMetrics_InterruptsTotal(t *testing.T) {
	m := newTestMetrics(t)
	m.InterruptsTotal()
	if got := testutil.ToFloat64(m.interruptsTotal); got != 1 {
		t.Errorf("interruptsTotal = %v, want 1", got)
	}
}
