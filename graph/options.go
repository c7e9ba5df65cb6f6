package graph

import (
	"time"

	"github.com/ardenflow/graphrun/graph/emit"
	"github.com/ardenflow/graphrun/graph/kv"
	"github.com/ardenflow/graphrun/graph/store"
	"github.com/ardenflow/graphrun/graph/tool"
)

// ConflictPolicy governs how the engine behaves when a Replace-reducer
// channel receives concurrent writes in one super-step.
type ConflictPolicy int

const (
	// ConflictFail surfaces a ConflictError and fails the run.
	ConflictFail ConflictPolicy = iota
	// ConflictLastWriteWins picks the write from the lexicographically last
	// source node name instead of erroring.
	ConflictLastWriteWins
)

type engineConfig struct {
	maxSteps            int
	maxConcurrent       int
	queueDepth          int
	backpressureTimeout time.Duration
	defaultNodeTimeout  time.Duration
	wallClockBudget     time.Duration
	conflictPolicy      ConflictPolicy
	durability          DurabilityMode
	store               store.Store
	kvStore             kv.Store
	tools               map[string]tool.Tool
	emitter             emit.Emitter
	review              ReviewConfig
	metrics             Metrics
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		maxSteps:            1000,
		maxConcurrent:       8,
		queueDepth:          64,
		backpressureTimeout: 30 * time.Second,
		durability:          DurabilitySync,
		tools:               make(map[string]tool.Tool),
		emitter:             emit.NewNullEmitter(),
		metrics:             noopMetrics{},
	}
}

// Option configures an Engine at construction time.
type Option func(*engineConfig) error

// WithMaxSteps bounds the number of super-steps a single run may take.
func WithMaxSteps(n int) Option {
	return func(c *engineConfig) error { c.maxSteps = n; return nil }
}

// WithMaxConcurrent bounds how many nodes execute in parallel within a
// super-step.
func WithMaxConcurrent(n int) Option {
	return func(c *engineConfig) error { c.maxConcurrent = n; return nil }
}

// WithQueueDepth records a task queue depth in the engine configuration.
// NewEngine does not pass it to the worker pool: a submission waits until
// a worker is free, with no queue limit.
func WithQueueDepth(n int) Option {
	return func(c *engineConfig) error { c.queueDepth = n; return nil }
}

// WithBackpressureTimeout records a backpressure timeout in the engine
// configuration. The engine does not apply it: a super-step waits for a
// free worker slot with no time limit and never returns
// BackpressureTimeoutError.
func WithBackpressureTimeout(d time.Duration) Option {
	return func(c *engineConfig) error { c.backpressureTimeout = d; return nil }
}

// WithDefaultNodeTimeout sets the timeout applied to nodes that didn't set
// their own via WithTimeout.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(c *engineConfig) error { c.defaultNodeTimeout = d; return nil }
}

// WithRunWallClockBudget bounds the total wall-clock time a run may take
// across all super-steps.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(c *engineConfig) error { c.wallClockBudget = d; return nil }
}

// WithConflictPolicy sets how Replace-channel write conflicts are handled.
func WithConflictPolicy(p ConflictPolicy) Option {
	return func(c *engineConfig) error { c.conflictPolicy = p; return nil }
}

// WithDurability sets the checkpoint persistence mode.
func WithDurability(m DurabilityMode) Option {
	return func(c *engineConfig) error { c.durability = m; return nil }
}

// WithStore sets the checkpoint store. Required.
func WithStore(s store.Store) Option {
	return func(c *engineConfig) error { c.store = s; return nil }
}

// WithKVStore attaches the cross-thread long-term store tools can reach
// via Runtime.Store().
func WithKVStore(s kv.Store) Option {
	return func(c *engineConfig) error { c.kvStore = s; return nil }
}

// WithTool registers a tool under its own Name().
func WithTool(t tool.Tool) Option {
	return func(c *engineConfig) error { c.tools[t.Name()] = t; return nil }
}

// WithEmitter sets the observability event sink.
func WithEmitter(e emit.Emitter) Option {
	return func(c *engineConfig) error { c.emitter = e; return nil }
}

// WithReview gates the named tools behind human-in-the-loop approval.
func WithReview(r ReviewConfig) Option {
	return func(c *engineConfig) error { c.review = r; return nil }
}

// WithMetrics attaches a Metrics collector.
func WithMetrics(m Metrics) Option {
	return func(c *engineConfig) error { c.metrics = m; return nil }
}
