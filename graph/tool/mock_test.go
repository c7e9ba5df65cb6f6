package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/ardenflow/graphrun/graph/kv"
)

func TestMockTool_Name(t *testing.T) {
	t.Run("returns configured tool name", func(t *testing.T) {
		mock := &MockTool{ToolName: "search_web"}
		if mock.Name() != "search_web" {
			t.Errorf("expected Name() = 'search_web', got %q", mock.Name())
		}
	})

	t.Run("returns empty string when not configured", func(t *testing.T) {
		mock := &MockTool{}
		if mock.Name() != "" {
			t.Errorf("expected Name() = '', got %q", mock.Name())
		}
	})
}

func TestMockTool_RequiresRuntime(t *testing.T) {
	t.Run("reports configured requirement", func(t *testing.T) {
		mock := &MockTool{Requires: true}
		if !mock.RequiresRuntime() {
			t.Error("expected RequiresRuntime() = true")
		}
	})

	t.Run("defaults to false", func(t *testing.T) {
		mock := &MockTool{}
		if mock.RequiresRuntime() {
			t.Error("expected RequiresRuntime() = false")
		}
	})
}

func TestMockTool_SingleResult(t *testing.T) {
	t.Run("returns configured result", func(t *testing.T) {
		mock := &MockTool{
			ToolName: "calculator",
			Results:  []MockResult{{Output: map[string]any{"result": 42}}},
		}

		out, cmd, err := mock.Call(context.Background(), map[string]any{"a": 40, "b": 2}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cmd != nil {
			t.Errorf("expected no command, got %+v", cmd)
		}
		if out["result"] != 42 {
			t.Errorf("expected result = 42, got %v", out["result"])
		}
	})

	t.Run("repeats last result when exhausted", func(t *testing.T) {
		mock := &MockTool{
			ToolName: "echo",
			Results:  []MockResult{{Output: map[string]any{"echo": "response"}}},
		}

		out1, _, _ := mock.Call(context.Background(), nil, nil)
		out2, _, _ := mock.Call(context.Background(), nil, nil)

		if out1["echo"] != out2["echo"] {
			t.Errorf("expected same result, got %v and %v", out1["echo"], out2["echo"])
		}
	})

	t.Run("returns empty map when no results configured", func(t *testing.T) {
		mock := &MockTool{ToolName: "empty_tool"}

		out, _, err := mock.Call(context.Background(), map[string]any{"x": 1}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(out) != 0 {
			t.Errorf("expected empty map, got %v", out)
		}
	})
}

func TestMockTool_ResultSequence(t *testing.T) {
	mock := &MockTool{
		ToolName: "counter",
		Results: []MockResult{
			{Output: map[string]any{"count": 1}},
			{Output: map[string]any{"count": 2}},
			{Output: map[string]any{"count": 3}},
		},
	}

	for i, want := range []int{1, 2, 3, 3} {
		out, _, err := mock.Call(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if out["count"] != want {
			t.Errorf("call %d: expected count = %d, got %v", i, want, out["count"])
		}
	}
}

func TestMockTool_Command(t *testing.T) {
	gotoCmd := Goto("next")
	mock := &MockTool{
		ToolName: "router",
		Results:  []MockResult{{Output: map[string]any{"ok": true}, Cmd: &gotoCmd}},
	}

	_, cmd, err := mock.Call(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cmd == nil || cmd.Kind != CommandGoto || cmd.Node != "next" {
		t.Errorf("expected Goto(\"next\") command, got %+v", cmd)
	}
}

func TestMockTool_ErrorInjection(t *testing.T) {
	t.Run("returns configured error", func(t *testing.T) {
		want := errors.New("tool execution failed")
		mock := &MockTool{
			ToolName: "failing_tool",
			Err:      want,
			Results:  []MockResult{{Output: map[string]any{"should": "not return"}}},
		}

		_, _, err := mock.Call(context.Background(), nil, nil)
		if !errors.Is(err, want) {
			t.Errorf("expected error %v, got %v", want, err)
		}
	})

	t.Run("error takes precedence over results", func(t *testing.T) {
		mock := &MockTool{
			ToolName: "error_tool",
			Err:      errors.New("boom"),
			Results:  []MockResult{{Output: map[string]any{"data": "value"}}},
		}

		_, _, err := mock.Call(context.Background(), nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestMockTool_CallHistory(t *testing.T) {
	t.Run("records all calls including runtime handle", func(t *testing.T) {
		mock := &MockTool{ToolName: "tracker", Results: []MockResult{{Output: map[string]any{"ok": true}}}}
		rt := &fakeRuntime{}

		_, _, _ = mock.Call(context.Background(), map[string]any{"query": "first"}, nil)
		_, _, _ = mock.Call(context.Background(), map[string]any{"query": "second", "limit": 10}, rt)

		if len(mock.Calls) != 2 {
			t.Fatalf("expected 2 calls recorded, got %d", len(mock.Calls))
		}
		if mock.Calls[0].RT != nil {
			t.Errorf("call 0: expected nil runtime, got %v", mock.Calls[0].RT)
		}
		if mock.Calls[1].RT != rt {
			t.Errorf("call 1: expected recorded runtime %v, got %v", rt, mock.Calls[1].RT)
		}
		if mock.Calls[1].Input["query"] != "second" {
			t.Errorf("call 1: expected query = 'second', got %v", mock.Calls[1].Input["query"])
		}
	})

	t.Run("records calls even when error configured", func(t *testing.T) {
		mock := &MockTool{ToolName: "error_tracker", Err: errors.New("error")}
		_, _, _ = mock.Call(context.Background(), map[string]any{"test": "data"}, nil)
		if len(mock.Calls) != 1 {
			t.Errorf("expected 1 call recorded, got %d", len(mock.Calls))
		}
	})
}

func TestMockTool_Reset(t *testing.T) {
	t.Run("clears call history", func(t *testing.T) {
		mock := &MockTool{ToolName: "resettable", Results: []MockResult{{Output: map[string]any{"ok": true}}}}
		_, _, _ = mock.Call(context.Background(), nil, nil)
		_, _, _ = mock.Call(context.Background(), nil, nil)
		if mock.CallCount() != 2 {
			t.Fatalf("expected 2 calls before reset, got %d", mock.CallCount())
		}
		mock.Reset()
		if mock.CallCount() != 0 {
			t.Errorf("expected 0 calls after reset, got %d", mock.CallCount())
		}
	})

	t.Run("resets result index", func(t *testing.T) {
		mock := &MockTool{
			ToolName: "sequence",
			Results: []MockResult{
				{Output: map[string]any{"value": "first"}},
				{Output: map[string]any{"value": "second"}},
			},
		}

		out1, _, _ := mock.Call(context.Background(), nil, nil)
		if out1["value"] != "first" {
			t.Fatalf("expected 'first', got %v", out1["value"])
		}

		mock.Reset()

		out2, _, _ := mock.Call(context.Background(), nil, nil)
		if out2["value"] != "first" {
			t.Errorf("expected 'first' after reset, got %v", out2["value"])
		}
	})
}

func TestMockTool_ContextCancellation(t *testing.T) {
	mock := &MockTool{ToolName: "cancellable", Results: []MockResult{{Output: map[string]any{"should": "not return"}}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := mock.Call(ctx, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected 0 calls recorded when context cancelled, got %d", mock.CallCount())
	}
}

func TestMockTool_Concurrency(t *testing.T) {
	mock := &MockTool{ToolName: "concurrent", Results: []MockResult{{Output: map[string]any{"ok": true}}}}

	const goroutines = 10
	done := make(chan bool, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			_, _, _ = mock.Call(context.Background(), map[string]any{"x": 1}, nil)
			done <- true
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}

	if mock.CallCount() != goroutines {
		t.Errorf("expected %d calls, got %d", goroutines, mock.CallCount())
	}
}

type fakeRuntime struct{}

func (f *fakeRuntime) State() map[string]any { return nil }
func (f *fakeRuntime) Store() kv.Store       { return nil }
func (f *fakeRuntime) Context() RunContext   { return RunContext{} }
func (f *fakeRuntime) Stream(string)         {}
