package graph

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
)

// taskKey identifies one node invocation for caching purposes: the
// checkpoint it ran against, the node, and a hash of its input, so a
// resumed run that replays an already-completed super-step can skip
// re-invoking a deterministic node and instead reuse its recorded result.
type taskKey struct {
	checkpointID string
	node         string
	inputHash    string
}

// TaskCache records node invocation outcomes keyed by (checkpoint, node,
// input) so a run that re-enters the same checkpoint can serve
// deterministic nodes from cache instead of re-running them, while nodes
// marked WithNondeterministic are always re-invoked. The key is the
// checkpoint a node ran against; Resume after an interrupt runs against
// the interrupt's own checkpoint, so that re-run does not hit the cache.
// Entries live in memory for the Engine's lifetime only.
type TaskCache struct {
	mu      sync.RWMutex
	entries map[taskKey]NodeResult
}

func newTaskCache() *TaskCache {
	return &TaskCache{entries: make(map[taskKey]NodeResult)}
}

// hashInput produces a stable digest of a node's input state for cache
// keying. State's Values map marshals with sorted keys via Go's native
// JSON encoding, so two equal inputs always hash identically regardless of
// map iteration order.
func hashInput(state State) (string, error) {
	b, err := json.Marshal(state.Values)
	if err != nil {
		return "", fmt.Errorf("graph: hash task input: %w", err)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}

// lookup returns a cached result for (checkpointID, node, state), if one
// exists.
func (c *TaskCache) lookup(checkpointID, node string, state State) (NodeResult, bool) {
	hash, err := hashInput(state)
	if err != nil {
		return NodeResult{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[taskKey{checkpointID: checkpointID, node: node, inputHash: hash}]
	return res, ok
}

// record stores a node's result for later lookup.
func (c *TaskCache) record(checkpointID, node string, state State, res NodeResult) {
	hash, err := hashInput(state)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[taskKey{checkpointID: checkpointID, node: node, inputHash: hash}] = res
}
