package graph

import "fmt"

// ConflictError reports that a channel using the Replace reducer received
// more than one write in a single super-step.
type ConflictError struct {
	Channel string
	Count   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("channel %q: %d concurrent writes, reducer requires at most one", e.Channel, e.Count)
}

// ReplayMismatchError describes a cached task whose recorded output no
// longer matches what the node would currently do — the node body's logic
// changed between the checkpoint and the resume. The Engine does not
// return it: Resume does not compare cached results with live ones.
type ReplayMismatchError struct {
	NodeID string
	TaskID string
	Reason string
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay mismatch at node %q task %q: %s", e.NodeID, e.TaskID, e.Reason)
}

// NoProgressError describes a super-step whose frontier is non-empty but
// whose every triggered node is blocked (e.g. waiting on a channel nothing
// in this run will ever write). The Engine does not return it: it runs
// every frontier node, and a run that never reaches End stops with
// MaxStepsExceededError.
type NoProgressError struct {
	Step    int
	Pending []string
}

func (e *NoProgressError) Error() string {
	return fmt.Sprintf("step %d: no progress, %d node(s) blocked: %v", e.Step, len(e.Pending), e.Pending)
}

// BackpressureTimeoutError describes a scheduler that could not acquire a
// worker slot within the configured backpressure timeout. The Engine does
// not return it: a super-step waits for a free slot with no time limit.
type BackpressureTimeoutError struct {
	Step int
}

func (e *BackpressureTimeoutError) Error() string {
	return fmt.Sprintf("step %d: timed out waiting for a free worker slot", e.Step)
}

// MaxStepsExceededError is returned when a run exceeds its configured step
// budget without reaching End.
type MaxStepsExceededError struct {
	MaxSteps int
}

func (e *MaxStepsExceededError) Error() string {
	return fmt.Sprintf("exceeded max steps (%d) without reaching end", e.MaxSteps)
}

// UnknownNodeError is returned by Compile or the scheduler when an edge or
// Command references a node name that was never added to the Builder.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.Node)
}

// UnreachableNodeError is returned by Compile when a node has no path from
// Start.
type UnreachableNodeError struct {
	Node string
}

func (e *UnreachableNodeError) Error() string {
	return fmt.Sprintf("node %q is unreachable from start", e.Node)
}

// CheckpointNotFoundError is returned by Fork when checkpointID is not among
// the thread's checkpoints. GetState and Resume report a missing checkpoint
// as store.ErrNotFound instead.
type CheckpointNotFoundError struct {
	ThreadID     string
	CheckpointID string
}

func (e *CheckpointNotFoundError) Error() string {
	return fmt.Sprintf("checkpoint %q not found for thread %q", e.CheckpointID, e.ThreadID)
}
