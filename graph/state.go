package graph

import (
	"time"

	"github.com/ardenflow/graphrun/graph/store"
)

// State is the graph's shared, versioned data at some point in a run.
// Values holds one entry per channel; Versions tracks how many times each
// channel has been written. Each checkpoint's VersionsSeen records these
// counters per node; the engine picks the next nodes from edges and
// Commands and does not compare versions to decide whether a node runs.
type State struct {
	Values   map[string]any
	Versions map[string]uint64
}

// Clone returns a State whose Values and Versions maps are independent of
// the receiver — snapshots handed to concurrently executing nodes must not
// share a backing map with the state being mutated by the reduce phase.
func (s State) Clone() State {
	values := make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		values[k] = v
	}
	versions := make(map[string]uint64, len(s.Versions))
	for k, v := range s.Versions {
		versions[k] = v
	}
	return State{Values: values, Versions: versions}
}

// toCheckpoint projects a State plus run metadata into the flat shape the
// store package persists. pendingWrites are the per-node writes collected
// for this step before reduction; toCheckpoint doesn't decide whether they
// need persisting via store.PutWrites, it only records them on the
// resulting Checkpoint for callers that do.
func toCheckpoint(threadID, checkpointID, parentID string, s State, versionsSeen map[string]map[string]uint64, nextNodes []string, meta map[string]any, createdAt time.Time, pendingWrites []store.PendingWrite) store.Checkpoint {
	// Clone so later reductions into s don't rewrite a stored checkpoint.
	s = s.Clone()
	return store.Checkpoint{
		ThreadID:      threadID,
		CheckpointID:  checkpointID,
		ParentID:      parentID,
		CreatedAt:     createdAt,
		Metadata:      meta,
		Values:        s.Values,
		Versions:      s.Versions,
		VersionsSeen:  versionsSeen,
		NextNodes:     nextNodes,
		PendingWrites: pendingWrites,
	}
}

// fromCheckpoint reconstructs a State from a persisted Checkpoint.
func fromCheckpoint(cp store.Checkpoint) State {
	return State{Values: cp.Values, Versions: cp.Versions}.Clone()
}
