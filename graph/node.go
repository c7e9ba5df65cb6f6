package graph

import "context"

// Start and End are reserved node names: Start is the implicit entry point,
// End terminates the run. Neither may be used as a user node name.
const (
	Start = "__start__"
	End   = "__end__"
)

// CommandKind distinguishes the control-flow effect a node's Command asks
// the scheduler to apply after the current super-step's writes are
// reduced.
type CommandKind int

const (
	// CommandNone means the node only produced channel writes; routing
	// follows the graph's static/conditional edges as usual.
	CommandNone CommandKind = iota
	// CommandGoto routes execution to Goto regardless of static edges.
	CommandGoto
	// CommandEnd terminates the run after this super-step.
	CommandEnd
	// CommandInterrupt suspends the run, surfacing Payload to the caller
	// and awaiting a Decision via Engine.Resume.
	CommandInterrupt
)

// Command is a node's request to steer execution beyond its own channel
// writes.
type Command struct {
	Kind    CommandKind
	Goto    string
	Payload *InterruptPayload
}

// Goto builds a Command that routes to node next.
func Goto(node string) Command { return Command{Kind: CommandGoto, Goto: node} }

// Stop builds a Command that ends the run.
func Stop() Command { return Command{Kind: CommandEnd} }

// Interrupt builds a Command that suspends the run pending human review.
func Interrupt(payload InterruptPayload) Command {
	return Command{Kind: CommandInterrupt, Payload: &payload}
}

// PlannedToolCall is a tool invocation a node wants the engine to execute
// and, if ReviewConfig gates this tool name, hold for approval before it
// runs.
type PlannedToolCall struct {
	ToolName string
	Input    map[string]any

	// ResultChannel, if set, is the channel the engine appends this call's
	// outcome to: {"tool_name", "ok", "result"} on success, or
	// {"tool_name", "ok": false, "reason"} on rejection or execution error.
	// Left empty, the outcome is still applied (Command side effects still
	// run) but isn't written back into state.
	ResultChannel string
}

// NodeResult is what a NodeFunc returns for one super-step.
type NodeResult struct {
	// Updates are this node's writes, keyed by channel name. Each value is
	// fed to that channel's reducer alongside any other node's write to the
	// same channel in this step.
	Updates map[string]any

	// Command optionally overrides normal edge routing.
	Command *Command

	// PlannedToolCalls are tool calls this node wants executed as part of
	// this step. The engine runs each one (suspending the run first if
	// ReviewConfig gates it and Resume hasn't yet supplied a Decision) and
	// folds its outcome into PlannedToolCall.ResultChannel, where the node
	// observes it on its next invocation.
	PlannedToolCalls []PlannedToolCall
}

// NodeFunc is a node body. ctx carries the run's cancellation/deadline; in
// is a read-only snapshot of the state as of the start of this super-step.
type NodeFunc func(ctx context.Context, in State) (NodeResult, error)
