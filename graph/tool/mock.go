package tool

import (
	"context"
	"sync"
)

// MockTool is a test double for Tool.
//
// It returns a configurable sequence of results (repeating the last one
// once exhausted), optionally a Command, or an injected error, and records
// every call for assertions.
type MockTool struct {
	ToolName string

	// Results is the sequence of outputs returned in order; the last one
	// repeats once exhausted. Each entry may carry a Command.
	Results []MockResult

	// Err, if set, is returned instead of a result.
	Err error

	// Requires, if true, makes RequiresRuntime() report true.
	Requires bool

	mu    sync.Mutex
	Calls []MockCall
	next  int
}

// MockResult is one scripted response for MockTool.
type MockResult struct {
	Output map[string]any
	Cmd    *Command
}

// MockCall records a single Call() invocation.
type MockCall struct {
	Input map[string]any
	RT    Runtime
}

func (m *MockTool) Name() string { return m.ToolName }

func (m *MockTool) RequiresRuntime() bool { return m.Requires }

func (m *MockTool) Call(ctx context.Context, input map[string]any, rt Runtime) (map[string]any, *Command, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Input: input, RT: rt})

	if m.Err != nil {
		return nil, nil, m.Err
	}
	if len(m.Results) == 0 {
		return map[string]any{}, nil, nil
	}

	idx := m.next
	if idx >= len(m.Results) {
		idx = len(m.Results) - 1
	} else {
		m.next++
	}
	r := m.Results[idx]
	return r.Output, r.Cmd, nil
}

// CallCount returns how many times Call has been invoked.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears call history and rewinds the result sequence.
func (m *MockTool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}
