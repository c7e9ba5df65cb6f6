// Package store provides persistence implementations for graph checkpoints.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested thread or checkpoint does not exist.
var ErrNotFound = errors.New("not found")

// Checkpoint is a durable snapshot of a thread's state, identified by a
// CheckpointID the engine generates (a ULID).
//
// Checkpoints form a tree (not a line) via ParentID: resuming a run appends
// a checkpoint whose parent is the previous head, while forking from an
// older checkpoint starts a new branch whose parent is that older node.
// A checkpoint with an empty ParentID is the root of its thread.
type Checkpoint struct {
	// ThreadID groups checkpoints that belong to the same logical run/conversation.
	ThreadID string `json:"thread_id"`

	// CheckpointID uniquely identifies this snapshot within its thread.
	CheckpointID string `json:"checkpoint_id"`

	// ParentID is the CheckpointID this one was derived from, or "" for a root.
	ParentID string `json:"parent_id,omitempty"`

	// CreatedAt records when the checkpoint was written.
	CreatedAt time.Time `json:"created_at"`

	// Metadata carries annotations. The engine writes RunConfig.Metadata on
	// ordinary steps, "interrupted_node" and "interrupt" (the payload) on an
	// interrupt checkpoint, and "source" ("manual_update") and "as_node" on
	// an UpdateState checkpoint.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Values holds the channel values after reduction at this step.
	Values map[string]any `json:"values"`

	// Versions holds the per-channel version counter at this step.
	Versions map[string]uint64 `json:"versions"`

	// VersionsSeen records, per node, the channel versions after the step
	// that node last ran in. It is kept for inspection; the engine does not
	// consult it when choosing which nodes run next.
	VersionsSeen map[string]map[string]uint64 `json:"versions_seen,omitempty"`

	// NextNodes is the frontier to resume into: nodes selected to run but
	// not yet completed (e.g. because the run stopped for an interrupt).
	NextNodes []string `json:"next_nodes,omitempty"`

	// PendingWrites holds per-node channel writes collected for this step
	// before reduction. They are recorded only; the engine does not read
	// them back to recover a step.
	PendingWrites []PendingWrite `json:"pending_writes,omitempty"`
}

// PendingWrite is a single channel write produced by one node during a
// super-step, recorded before the scheduler folds it into Checkpoint.Values.
type PendingWrite struct {
	NodeID  string `json:"node_id"`
	Channel string `json:"channel"`
	Value   any    `json:"value"`
	TaskID  string `json:"task_id,omitempty"`
}

// Store persists and retrieves checkpoints for threads.
//
// Implementations must be safe for concurrent use. Put is append-only: it
// must never mutate an existing CheckpointID, only add new ones, so that an
// async durability writer can never corrupt an already-acknowledged
// checkpoint.
type Store interface {
	// Put appends a checkpoint. CheckpointID must be unique within ThreadID.
	Put(ctx context.Context, cp Checkpoint) error

	// Get retrieves a checkpoint by id, or the thread's most recent
	// checkpoint (by CreatedAt) when checkpointID is "".
	Get(ctx context.Context, threadID, checkpointID string) (Checkpoint, error)

	// List returns every checkpoint stored for a thread, newest first. A
	// limit <= 0 means no limit. Callers reconstruct the checkpoint tree
	// from ParentID links.
	List(ctx context.Context, threadID string, limit int) ([]Checkpoint, error)

	// PutWrites persists pending per-node writes for a checkpoint ahead of
	// the checkpoint itself being durable. Store has no method that reads
	// them back, so nothing recovers a step from them after a crash.
	PutWrites(ctx context.Context, threadID, checkpointID string, writes []PendingWrite) error

	// DeleteThread removes every checkpoint belonging to a thread.
	DeleteThread(ctx context.Context, threadID string) error
}
