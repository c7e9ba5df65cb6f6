// Package tool defines executable tools that node bodies can invoke, and the
// runtime handle that lets a tool read state, use the long-term store, and
// steer graph execution via a Command.
package tool

import (
	"context"

	"github.com/ardenflow/graphrun/graph/kv"
)

// CommandKind distinguishes the control-flow effect a tool asks the
// scheduler to apply after its call completes.
type CommandKind int

const (
	// CommandNone means the tool only produced a result; no routing effect.
	CommandNone CommandKind = iota
	// CommandUpdateState merges Fields into the current state as if the
	// calling node had written them directly.
	CommandUpdateState
	// CommandGoto routes execution to Node regardless of the graph's
	// static/conditional edges.
	CommandGoto
	// CommandEnd terminates the run after the current super-step.
	CommandEnd
)

// Command is the control-flow instruction a tool may return alongside its
// result. The zero value is CommandNone (no effect).
type Command struct {
	Kind   CommandKind
	Node   string         // for CommandGoto
	Fields map[string]any // for CommandUpdateState
}

// UpdateState builds a Command that merges fields into the state.
func UpdateState(fields map[string]any) Command {
	return Command{Kind: CommandUpdateState, Fields: fields}
}

// Goto builds a Command that routes to node next.
func Goto(node string) Command {
	return Command{Kind: CommandGoto, Node: node}
}

// End builds a Command that terminates the run.
func End() Command {
	return Command{Kind: CommandEnd}
}

// RunContext identifies the run a tool call is executing within.
type RunContext struct {
	RunID    string
	ThreadID string
	UserID   string
}

// Runtime is the handle threaded into a Tool's Call when RequiresRuntime
// returns true. It exposes the minimum surface a tool needs to read state,
// reach the long-term store, and stream progress without giving it control
// over scheduling directly.
type Runtime interface {
	// State returns a read-only snapshot of the current channel values.
	State() map[string]any

	// Store returns the long-term key-value store for this run. Nil if the
	// engine wasn't configured with one.
	Store() kv.Store

	// Context returns the identifiers for the current run.
	Context() RunContext

	// Stream emits a token/progress delta visible to a caller following the
	// run's event stream.
	Stream(text string)
}

// Tool is an executable action a node body can invoke.
//
// Implementations should validate input, respect context cancellation, and
// return a result as structured key-value data. A tool that needs state
// access, the long-term store, or Stream must return true from
// RequiresRuntime; the engine builds a Runtime only for such tools. A
// returned Command is applied whether or not the tool takes a Runtime.
type Tool interface {
	// Name returns the tool's unique identifier, used both for dispatch and
	// for matching against a ReviewConfig's GatedTools.
	Name() string

	// RequiresRuntime reports whether Call needs a non-nil Runtime.
	RequiresRuntime() bool

	// Call executes the tool. rt is nil unless RequiresRuntime() is true.
	Call(ctx context.Context, input map[string]any, rt Runtime) (result map[string]any, cmd *Command, err error)
}
