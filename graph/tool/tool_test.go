// Package tool provides tool interfaces for graph nodes.
package tool

import (
	"context"
	"testing"
)

func TestTool_InterfaceContract(t *testing.T) {
	var _ Tool = (*MockTool)(nil)
	var _ Tool = (*HTTPTool)(nil)
}

func TestUpdateState(t *testing.T) {
	cmd := UpdateState(map[string]any{"status": "done"})
	if cmd.Kind != CommandUpdateState {
		t.Errorf("Kind = %v, want CommandUpdateState", cmd.Kind)
	}
	if cmd.Fields["status"] != "done" {
		t.Errorf("Fields = %v", cmd.Fields)
	}
}

func TestGoto(t *testing.T) {
	cmd := Goto("reviewer")
	if cmd.Kind != CommandGoto {
		t.Errorf("Kind = %v, want CommandGoto", cmd.Kind)
	}
	if cmd.Node != "reviewer" {
		t.Errorf("Node = %q, want %q", cmd.Node, "reviewer")
	}
}

func TestEnd(t *testing.T) {
	cmd := End()
	if cmd.Kind != CommandEnd {
		t.Errorf("Kind = %v, want CommandEnd", cmd.Kind)
	}
}

func TestCommand_ZeroValueIsNone(t *testing.T) {
	var cmd Command
	if cmd.Kind != CommandNone {
		t.Errorf("zero value Kind = %v, want CommandNone", cmd.Kind)
	}
}

func TestTool_Call_RespectsContextCancellation(t *testing.T) {
	tool := &MockTool{ToolName: "context-aware"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := tool.Call(ctx, nil, nil)
	if err == nil {
		t.Error("Call() error = nil, want context.Canceled")
	}
}

func TestTool_ConcurrentCalls(t *testing.T) {
	tool := &MockTool{ToolName: "concurrent", Results: []MockResult{{Output: map[string]any{"status": "success"}}}}

	const numGoroutines = 10
	errChan := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			_, _, err := tool.Call(context.Background(), map[string]any{"id": id}, nil)
			errChan <- err
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		if err := <-errChan; err != nil {
			t.Errorf("concurrent call %d failed: %v", i, err)
		}
	}
}
