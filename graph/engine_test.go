package graph

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ardenflow/graphrun/graph/store"
	"github.com/ardenflow/graphrun/graph/tool"
)

func numberSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(
		Replace("total", func() any { return 0 }),
		Append("log", func() any { return []any{} }),
	)
	require.NoError(t, err)
	return schema
}

func newTestEngine(t *testing.T, g *Graph, opts ...Option) *Engine {
	t.Helper()
	allOpts := append([]Option{WithStore(store.NewMemoryStore())}, opts...)
	eng, err := NewEngine(g, allOpts...)
	require.NoError(t, err)
	t.Cleanup(eng.Close)
	return eng
}

// TestLinearChain covers the linear-chain scenario: three nodes in
// sequence, each appending to "log", final state reflects all three.
func TestLinearChain(t *testing.T) {
	schema := numberSchema(t)
	b := NewBuilder(schema)
	for _, name := range []string{"a", "b", "c"} {
		name := name
		b.AddNode(name, func(ctx context.Context, in State) (NodeResult, error) {
			return NodeResult{Updates: map[string]any{"log": []any{name}}}, nil
		})
	}
	b.AddEdge(Start, "a")
	b.AddEdge("a", "b")
	b.AddEdge("b", "c")
	b.AddEdge("c", End)
	g, err := b.Compile()
	require.NoError(t, err)

	eng := newTestEngine(t, g)
	result := eng.Invoke(context.Background(), RunConfig{ThreadID: "t1"})
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, []any{"a", "b", "c"}, result.State.Values["log"])
}

// TestParallelFanOutFanIn covers two nodes running in the same super-step
// and a join node that sees both of their writes.
func TestParallelFanOutFanIn(t *testing.T) {
	schema := numberSchema(t)
	b := NewBuilder(schema)
	b.AddNode("split", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{}, nil
	})
	b.AddNode("left", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"log": []any{"left"}}}, nil
	})
	b.AddNode("right", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"log": []any{"right"}}}, nil
	})
	b.AddNode("join", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"total": len(in.Values["log"].([]any))}}, nil
	})
	b.AddEdge(Start, "split")
	b.AddEdge("split", "left")
	b.AddEdge("split", "right")
	b.AddEdge("left", "join")
	b.AddEdge("right", "join")
	b.AddEdge("join", End)
	g, err := b.Compile()
	require.NoError(t, err)

	eng := newTestEngine(t, g)
	result := eng.Invoke(context.Background(), RunConfig{ThreadID: "t2"})
	require.Equal(t, StatusCompleted, result.Status)
	require.ElementsMatch(t, []any{"left", "right"}, result.State.Values["log"])
	require.Equal(t, 2, result.State.Values["total"])
}

// TestConditionalRouting covers a conditional edge sending execution down
// one of two branches based on state.
func TestConditionalRouting(t *testing.T) {
	schema := numberSchema(t)
	b := NewBuilder(schema)
	b.AddNode("check", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"total": 10}}, nil
	})
	b.AddNode("big", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"log": []any{"big"}}}, nil
	})
	b.AddNode("small", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"log": []any{"small"}}}, nil
	})
	b.AddEdge(Start, "check")
	b.AddConditionalEdge("check", func(s State) string {
		if s.Values["total"].(int) > 5 {
			return "big"
		}
		return "small"
	}, map[string]string{"big": "big", "small": "small"})
	b.AddEdge("big", End)
	b.AddEdge("small", End)
	g, err := b.Compile()
	require.NoError(t, err)

	eng := newTestEngine(t, g)
	result := eng.Invoke(context.Background(), RunConfig{ThreadID: "t3"})
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, []any{"big"}, result.State.Values["log"])
}

// TestTimeTravelAndFork covers GetStateHistory + Fork: a forked thread's
// history is independent of the original thread's subsequent writes.
func TestTimeTravelAndFork(t *testing.T) {
	schema := numberSchema(t)
	b := NewBuilder(schema)
	b.AddNode("step1", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"log": []any{"step1"}}}, nil
	})
	b.AddNode("step2", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{Updates: map[string]any{"log": []any{"step2"}}}, nil
	})
	b.AddEdge(Start, "step1")
	b.AddEdge("step1", "step2")
	b.AddEdge("step2", End)
	g, err := b.Compile()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	eng := newTestEngine(t, g, WithStore(st))
	// eng also ends up on st (the later WithStore wins); eng2 is a second
	// engine built directly on the same store.
	eng2, err := NewEngine(g, WithStore(st))
	require.NoError(t, err)
	defer eng2.Close()

	result := eng2.Invoke(context.Background(), RunConfig{ThreadID: "orig"})
	require.Equal(t, StatusCompleted, result.Status)

	history, err := eng2.GetStateHistory(context.Background(), "orig", 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(history), 2)

	// Fork from the checkpoint right after step1 (second oldest).
	afterStep1 := history[len(history)-2]
	require.NoError(t, eng2.Fork(context.Background(), "orig", afterStep1.CheckpointID, "forked"))

	forkedState, err := eng2.GetState(context.Background(), "forked", "")
	require.NoError(t, err)
	require.Equal(t, []any{"step1"}, forkedState.Values["log"])

	// Original thread is untouched by the fork.
	origState, err := eng2.GetState(context.Background(), "orig", "")
	require.NoError(t, err)
	require.Equal(t, []any{"step1", "step2"}, origState.Values["log"])
	_ = eng
}

// dangerousOp is a tool whose calls TestInterruptAndApprove gates behind
// review; it reports the x it was actually called with so the test can
// distinguish Approve from Edit.
type dangerousOp struct{}

func (dangerousOp) Name() string          { return "dangerous_op" }
func (dangerousOp) RequiresRuntime() bool { return false }

func (dangerousOp) Call(_ context.Context, input map[string]any, _ tool.Runtime) (map[string]any, *tool.Command, error) {
	return map[string]any{"x": input["x"]}, nil, nil
}

// TestInterruptAndApprove covers a gated tool call suspending the run and
// Resume completing it once approved, asserting the resulting state
// actually reflects the tool's effect rather than just the run's status.
func TestInterruptAndApprove(t *testing.T) {
	schema, err := NewSchema(
		Replace("total", func() any { return 0 }),
		Append("log", func() any { return []any{} }),
		Append("tool_log", func() any { return []any{} }),
	)
	require.NoError(t, err)
	b := NewBuilder(schema)
	b.AddNode("act", func(ctx context.Context, in State) (NodeResult, error) {
		if len(in.Values["tool_log"].([]any)) > 0 {
			return NodeResult{Updates: map[string]any{"log": []any{"acted"}}}, nil
		}
		return NodeResult{
			PlannedToolCalls: []PlannedToolCall{{ToolName: "dangerous_op", Input: map[string]any{"x": 1}, ResultChannel: "tool_log"}},
		}, nil
	})
	b.AddEdge(Start, "act")
	b.AddConditionalEdge("act", func(s State) string {
		if len(s.Values["log"].([]any)) > 0 {
			return End
		}
		return "act"
	}, map[string]string{"act": "act", End: End})
	g, err := b.Compile()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	eng, err := NewEngine(g,
		WithStore(st),
		WithTool(dangerousOp{}),
		WithReview(ReviewConfig{GatedTools: map[string]bool{"dangerous_op": true}}),
	)
	require.NoError(t, err)
	defer eng.Close()

	result := eng.Invoke(context.Background(), RunConfig{ThreadID: "t5", Input: map[string]any{"total": 0}})
	require.Equal(t, StatusInterrupted, result.Status)
	require.NotNil(t, result.Interrupt)
	require.Len(t, result.Interrupt.ActionRequests, 1)
	require.Equal(t, "dangerous_op", result.Interrupt.ActionRequests[0].Name)
	require.Equal(t, "act", result.Interrupt.ActionRequests[0].OriginNode)
	require.Len(t, result.Interrupt.ReviewConfigs, 1)

	decisions := []Decision{{ActionID: result.Interrupt.ActionRequests[0].ID, Kind: DecisionApprove}}
	resumed := eng.Resume(context.Background(), "t5", decisions)
	require.Equal(t, StatusCompleted, resumed.Status)

	toolLog := resumed.State.Values["tool_log"].([]any)
	require.Len(t, toolLog, 1)
	outcome := toolLog[0].(map[string]any)
	require.Equal(t, true, outcome["ok"])
	require.Equal(t, map[string]any{"x": 1}, outcome["result"])
	require.Equal(t, []any{"acted"}, resumed.State.Values["log"])
}

// TestInterruptEditAndReject covers Edit substituting args before a call
// runs and Reject synthesizing a result instead of calling the tool.
func TestInterruptEditAndReject(t *testing.T) {
	schema, err := NewSchema(
		Append("tool_log", func() any { return []any{} }),
	)
	require.NoError(t, err)
	b := NewBuilder(schema)
	b.AddNode("act", func(ctx context.Context, in State) (NodeResult, error) {
		return NodeResult{
			PlannedToolCalls: []PlannedToolCall{{ToolName: "dangerous_op", Input: map[string]any{"x": 1}, ResultChannel: "tool_log"}},
		}, nil
	})
	b.AddEdge(Start, "act")
	b.AddEdge("act", End)
	g, err := b.Compile()
	require.NoError(t, err)

	newEngine := func() (*Engine, *store.MemoryStore) {
		st := store.NewMemoryStore()
		eng, err := NewEngine(g,
			WithStore(st),
			WithTool(dangerousOp{}),
			WithReview(ReviewConfig{GatedTools: map[string]bool{"dangerous_op": true}}),
		)
		require.NoError(t, err)
		t.Cleanup(eng.Close)
		return eng, st
	}

	t.Run("edit substitutes args before the call runs", func(t *testing.T) {
		eng, _ := newEngine()
		result := eng.Invoke(context.Background(), RunConfig{ThreadID: "edit"})
		require.Equal(t, StatusInterrupted, result.Status)

		decisions := []Decision{{
			ActionID:    result.Interrupt.ActionRequests[0].ID,
			Kind:        DecisionEdit,
			EditedInput: map[string]any{"x": 99},
		}}
		resumed := eng.Resume(context.Background(), "edit", decisions)
		require.Equal(t, StatusCompleted, resumed.Status)

		outcome := resumed.State.Values["tool_log"].([]any)[0].(map[string]any)
		require.Equal(t, true, outcome["ok"])
		require.Equal(t, map[string]any{"x": 99}, outcome["result"])
	})

	t.Run("reject synthesizes a result without calling the tool", func(t *testing.T) {
		eng, _ := newEngine()
		result := eng.Invoke(context.Background(), RunConfig{ThreadID: "reject"})
		require.Equal(t, StatusInterrupted, result.Status)

		decisions := []Decision{{
			ActionID: result.Interrupt.ActionRequests[0].ID,
			Kind:     DecisionReject,
			Note:     "not today",
		}}
		resumed := eng.Resume(context.Background(), "reject", decisions)
		require.Equal(t, StatusCompleted, resumed.Status)

		outcome := resumed.State.Values["tool_log"].([]any)[0].(map[string]any)
		require.Equal(t, false, outcome["ok"])
		require.Equal(t, "not today", outcome["reason"])
	})
}

// TestTaskCache_SkipsDeterministicNodeOnResume verifies a node marked
// deterministic is served from cache rather than re-invoked when Resume
// re-enters the same checkpoint with identical input.
func TestTaskCache_SkipsDeterministicNodeOnResume(t *testing.T) {
	schema := numberSchema(t)
	var calls int64
	b := NewBuilder(schema)
	b.AddNode("count", func(ctx context.Context, in State) (NodeResult, error) {
		atomic.AddInt64(&calls, 1)
		return NodeResult{Updates: map[string]any{"total": 1}}, nil
	})
	b.AddEdge(Start, "count")
	b.AddEdge("count", End)
	g, err := b.Compile()
	require.NoError(t, err)

	st := store.NewMemoryStore()
	eng, err := NewEngine(g, WithStore(st))
	require.NoError(t, err)
	defer eng.Close()

	state := schema.ZeroState()
	cached, ok := eng.cache.lookup("cp1", "count", state)
	require.False(t, ok)

	res, err := eng.invokeNode(context.Background(), "count", state, "cp1")
	require.NoError(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&calls))

	cached, ok = eng.cache.lookup("cp1", "count", state)
	require.True(t, ok)
	require.Equal(t, res.Updates, cached.Updates)

	_, err = eng.invokeNode(context.Background(), "count", state, "cp1")
	require.NoError(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&calls), "cached deterministic node should not re-invoke")
}
