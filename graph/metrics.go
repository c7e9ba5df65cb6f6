package graph

import "time"

// Metrics receives scheduler instrumentation. Implementations must be
// safe for concurrent use; the engine calls these from worker goroutines.
// graph/metrics provides a Prometheus-backed implementation.
type Metrics interface {
	InflightNodes(delta int)
	QueueDepth(depth int)
	StepLatency(d time.Duration)
	NodeLatency(node string, d time.Duration)
	RetriesTotal(node string)
	MergeConflictsTotal(channel string)
	BackpressureEvents()
	CheckpointsTotal(mode DurabilityMode)
	InterruptsTotal()
}

// noopMetrics is the zero-cost default when no Metrics is configured.
type noopMetrics struct{}

func (noopMetrics) InflightNodes(int)                 {}
func (noopMetrics) QueueDepth(int)                    {}
func (noopMetrics) StepLatency(time.Duration)         {}
func (noopMetrics) NodeLatency(string, time.Duration) {}
func (noopMetrics) RetriesTotal(string)               {}
func (noopMetrics) MergeConflictsTotal(string)        {}
func (noopMetrics) BackpressureEvents()               {}
func (noopMetrics) CheckpointsTotal(DurabilityMode)   {}
func (noopMetrics) InterruptsTotal()                  {}
