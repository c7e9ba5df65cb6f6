package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/ardenflow/graphrun/graph/emit"
	"github.com/ardenflow/graphrun/graph/kv"
	"github.com/ardenflow/graphrun/graph/store"
	"github.com/ardenflow/graphrun/graph/tool"
)

// DurabilityMode controls when a super-step's checkpoint becomes durable.
type DurabilityMode int

const (
	// DurabilitySync blocks the super-step on store.Put before advancing.
	// No committed checkpoint is ever lost.
	DurabilitySync DurabilityMode = iota
	// DurabilityAsync enqueues the checkpoint and advances immediately. A
	// crash may lose the trailing checkpoint, but Put is append-only so an
	// already-acknowledged checkpoint is never corrupted.
	DurabilityAsync
	// DurabilityExit buffers every super-step's checkpoint in memory and
	// flushes the whole run as a batch once it reaches a terminal status.
	DurabilityExit
)

func (m DurabilityMode) String() string {
	switch m {
	case DurabilitySync:
		return "sync"
	case DurabilityAsync:
		return "async"
	case DurabilityExit:
		return "exit"
	default:
		return "unknown"
	}
}

// RunConfig parameterizes one Invoke call. Resume builds its own from the
// thread id it is given.
type RunConfig struct {
	ThreadID string
	Input    map[string]any
	Metadata map[string]any
}

// RunStatus is the terminal disposition of a run.
type RunStatus int

const (
	StatusCompleted RunStatus = iota
	StatusInterrupted
	StatusFailed
)

// RunResult is returned by Invoke/Resume.
type RunResult struct {
	Status       RunStatus
	State        State
	CheckpointID string
	Interrupt    *InterruptPayload
	Err          error
}

// Engine executes a compiled Graph as a series of Pregel-style super-steps,
// persisting a checkpoint after each one.
type Engine struct {
	graph *Graph
	cfg   engineConfig
	pool  *ants.Pool
	cache *TaskCache

	mu      sync.Mutex
	pending map[string][]store.Checkpoint // durability=exit buffer, by threadID
}

// NewEngine compiles options over g into a ready-to-run Engine. WithStore
// is required.
func NewEngine(g *Graph, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.store == nil {
		return nil, fmt.Errorf("graph: WithStore is required")
	}

	pool, err := ants.NewPool(cfg.maxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("graph: build worker pool: %w", err)
	}

	return &Engine{
		graph:   g,
		cfg:     cfg,
		pool:    pool,
		cache:   newTaskCache(),
		pending: make(map[string][]store.Checkpoint),
	}, nil
}

// Close releases the engine's worker pool.
func (e *Engine) Close() { e.pool.Release() }

// Invoke runs cfg.ThreadID from its current checkpoint (or fresh, if none
// exists) to completion, an interrupt, or an error.
func (e *Engine) Invoke(ctx context.Context, cfg RunConfig) RunResult {
	runID := ulid.Make().String()
	state := e.graph.schema.ZeroState()
	frontier := []string{Start}
	var parentID string

	existing, err := e.cfg.store.Get(ctx, cfg.ThreadID, "")
	if err == nil {
		state = fromCheckpoint(existing)
		frontier = existing.NextNodes
		parentID = existing.CheckpointID
	} else if err != store.ErrNotFound {
		return RunResult{Status: StatusFailed, Err: err}
	}

	if len(frontier) == 0 {
		frontier = []string{Start}
	}
	return e.run(ctx, runID, cfg, state, frontier, parentID, nil)
}

// Resume continues a previously interrupted run, applying decisions to the
// paused action requests before re-entering the super-step loop.
func (e *Engine) Resume(ctx context.Context, threadID string, decisions []Decision) RunResult {
	cfg := RunConfig{ThreadID: threadID}
	cp, err := e.cfg.store.Get(ctx, threadID, "")
	if err != nil {
		return RunResult{Status: StatusFailed, Err: err}
	}
	state := fromCheckpoint(cp)
	runID := ulid.Make().String()
	return e.run(ctx, runID, cfg, state, cp.NextNodes, cp.CheckpointID, decisions)
}

// GetState returns the current (or, with a non-empty checkpointID, a
// historical) state for a thread.
func (e *Engine) GetState(ctx context.Context, threadID, checkpointID string) (State, error) {
	cp, err := e.cfg.store.Get(ctx, threadID, checkpointID)
	if err != nil {
		return State{}, err
	}
	return fromCheckpoint(cp), nil
}

// GetStateHistory returns every checkpoint recorded for threadID, newest
// first.
func (e *Engine) GetStateHistory(ctx context.Context, threadID string, limit int) ([]store.Checkpoint, error) {
	return e.cfg.store.List(ctx, threadID, limit)
}

// updateStateNode is the synthetic node name UpdateState records as the
// writer of its updates when the caller doesn't supply an as_node.
const updateStateNode = "__update_state__"

// UpdateState persists a new checkpoint on top of threadID's current head,
// merging updates into state as if asNode had written them — the mechanism
// a human-in-the-loop reviewer uses to hand-edit state before resuming. An
// empty asNode records updateStateNode as the writer.
func (e *Engine) UpdateState(ctx context.Context, threadID string, updates map[string]any, asNode string) (State, error) {
	if asNode == "" {
		asNode = updateStateNode
	}

	cp, err := e.cfg.store.Get(ctx, threadID, "")
	var state State
	var parentID string
	if err == nil {
		state = fromCheckpoint(cp)
		parentID = cp.CheckpointID
	} else if err == store.ErrNotFound {
		state = e.graph.schema.ZeroState()
	} else {
		return State{}, err
	}

	for channel, value := range updates {
		ch, ok := e.graph.schema.Channel(channel)
		if !ok {
			return State{}, fmt.Errorf("graph: unknown channel %q", channel)
		}
		merged, err := ch.Reduce(state.Values[channel], []any{value})
		if err != nil {
			return State{}, err
		}
		state.Values[channel] = merged
		state.Versions[channel]++
	}

	checkpointID := ulid.Make().String()
	next := cp.NextNodes
	versionsSeen := map[string]map[string]uint64{asNode: cloneVersions(state.Versions)}
	meta := map[string]any{"source": "manual_update", "as_node": asNode}
	newCP := toCheckpoint(threadID, checkpointID, parentID, state, versionsSeen, next, meta, time.Now(), nil)
	if err := e.cfg.store.Put(ctx, newCP); err != nil {
		return State{}, err
	}
	return state, nil
}

// Fork copies the checkpoint chain up to and including checkpointID into a
// new thread, letting the caller branch execution from any point in a
// prior run's history without mutating it.
func (e *Engine) Fork(ctx context.Context, threadID, checkpointID, newThreadID string) error {
	history, err := e.cfg.store.List(ctx, threadID, 0)
	if err != nil {
		return err
	}

	byID := make(map[string]store.Checkpoint, len(history))
	for _, cp := range history {
		byID[cp.CheckpointID] = cp
	}

	var chain []store.Checkpoint
	cur, ok := byID[checkpointID]
	if !ok {
		return &CheckpointNotFoundError{ThreadID: threadID, CheckpointID: checkpointID}
	}
	for {
		chain = append([]store.Checkpoint{cur}, chain...)
		if cur.ParentID == "" {
			break
		}
		parent, ok := byID[cur.ParentID]
		if !ok {
			break
		}
		cur = parent
	}

	for _, cp := range chain {
		cp.ThreadID = newThreadID
		if err := e.cfg.store.Put(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// step is one node's invocation outcome within a super-step.
type step struct {
	node    string
	result  NodeResult
	err     error
	elapsed time.Duration
}

func (e *Engine) run(ctx context.Context, runID string, cfg RunConfig, state State, frontier []string, parentID string, decisions []Decision) RunResult {
	if cfg.Input != nil && parentID == "" {
		for channel, value := range cfg.Input {
			ch, ok := e.graph.schema.Channel(channel)
			if !ok {
				return RunResult{Status: StatusFailed, Err: fmt.Errorf("graph: unknown input channel %q", channel)}
			}
			merged, err := ch.Reduce(state.Values[channel], []any{value})
			if err != nil {
				return RunResult{Status: StatusFailed, Err: err}
			}
			state.Values[channel] = merged
			state.Versions[channel]++
		}
	}

	decisionByAction := make(map[string]Decision, len(decisions))
	for _, d := range decisions {
		decisionByAction[d.ActionID] = d
	}

	deadline := time.Time{}
	if e.cfg.wallClockBudget > 0 {
		deadline = time.Now().Add(e.cfg.wallClockBudget)
	}

	for stepNum := 1; ; stepNum++ {
		if stepNum > e.cfg.maxSteps {
			return RunResult{Status: StatusFailed, Err: &MaxStepsExceededError{MaxSteps: e.cfg.maxSteps}}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return RunResult{Status: StatusFailed, Err: fmt.Errorf("graph: run exceeded wall-clock budget")}
		}

		active := dedupAndDropSentinels(frontier)
		for _, n := range frontier {
			if n == Start {
				// Start runs as an empty step: its edges resolve the entry
				// node(s), and the input state gets a checkpoint of its own.
				active = append([]string{Start}, active...)
				break
			}
		}
		if len(active) == 0 {
			e.flushPending(ctx, cfg.ThreadID)
			return RunResult{Status: StatusCompleted, State: state, CheckpointID: parentID}
		}

		stepStart := time.Now()
		results, interrupted := e.executeStep(ctx, runID, cfg.ThreadID, stepNum, active, state, decisionByAction, parentID)
		e.cfg.metrics.StepLatency(time.Since(stepStart))

		var stepErr error
		var pendingWrites []store.PendingWrite
		for _, r := range results {
			if r.err != nil {
				stepErr = r.err
				continue
			}
			for channel, value := range r.result.Updates {
				pendingWrites = append(pendingWrites, store.PendingWrite{NodeID: r.node, Channel: channel, Value: value, TaskID: r.node})
			}
			e.cfg.metrics.NodeLatency(r.node, r.elapsed)
		}
		if stepErr != nil {
			return RunResult{Status: StatusFailed, State: state, Err: stepErr}
		}

		// Persist this step's raw writes before reducing them into state
		// (spec: put_writes precedes reduce). The engine records them only;
		// no code path reads them back to recover a step after a crash.
		checkpointID := ulid.Make().String()
		if len(pendingWrites) > 0 {
			if err := e.cfg.store.PutWrites(ctx, cfg.ThreadID, checkpointID, pendingWrites); err != nil {
				return RunResult{Status: StatusFailed, State: state, Err: err}
			}
		}

		if interrupted != nil {
			e.cfg.metrics.InterruptsTotal()
			cp := toCheckpoint(cfg.ThreadID, checkpointID, parentID, state, nil, active, map[string]any{"interrupted_node": interrupted.NodeID, "interrupt": interrupted}, time.Now(), pendingWrites)
			if err := e.persist(ctx, cfg.ThreadID, cp); err != nil {
				return RunResult{Status: StatusFailed, Err: err}
			}
			return RunResult{Status: StatusInterrupted, State: state, CheckpointID: cp.CheckpointID, Interrupt: interrupted}
		}

		var terminate bool
		var overrides []string
		versionsSeen := make(map[string]map[string]uint64, len(results))

		writesByChannel := make(map[string][]struct {
			node  string
			value any
		})
		for _, w := range pendingWrites {
			writesByChannel[w.Channel] = append(writesByChannel[w.Channel], struct {
				node  string
				value any
			}{node: w.NodeID, value: w.Value})
		}

		for channel, writes := range writesByChannel {
			sort.Slice(writes, func(i, j int) bool { return writes[i].node < writes[j].node })
			values := make([]any, len(writes))
			for i, w := range writes {
				values[i] = w.value
			}
			ch, ok := e.graph.schema.Channel(channel)
			if !ok {
				return RunResult{Status: StatusFailed, State: state, Err: fmt.Errorf("graph: unknown channel %q", channel)}
			}
			merged, err := ch.Reduce(state.Values[channel], values)
			if err != nil {
				if _, conflict := err.(*ConflictError); conflict && e.cfg.conflictPolicy == ConflictLastWriteWins {
					e.cfg.metrics.MergeConflictsTotal(channel)
					merged = values[len(values)-1]
				} else {
					return RunResult{Status: StatusFailed, State: state, Err: err}
				}
			}
			state.Values[channel] = merged
			state.Versions[channel]++
		}

		var nextFrontier []string
		seenNext := make(map[string]bool)
		for _, r := range results {
			versionsSeen[r.node] = cloneVersions(state.Versions)

			if r.result.Command != nil {
				switch r.result.Command.Kind {
				case CommandEnd:
					terminate = true
					continue
				case CommandGoto:
					overrides = append(overrides, r.result.Command.Goto)
					continue
				}
			}

			successors, err := e.graph.successors(r.node, state)
			if err != nil {
				return RunResult{Status: StatusFailed, State: state, Err: err}
			}
			for _, s := range successors {
				if !seenNext[s] {
					seenNext[s] = true
					nextFrontier = append(nextFrontier, s)
				}
			}
		}
		for _, o := range overrides {
			if !seenNext[o] {
				seenNext[o] = true
				nextFrontier = append(nextFrontier, o)
			}
		}

		cp := toCheckpoint(cfg.ThreadID, checkpointID, parentID, state, versionsSeen, nextFrontier, cfg.Metadata, time.Now(), pendingWrites)
		if err := e.persist(ctx, cfg.ThreadID, cp); err != nil {
			return RunResult{Status: StatusFailed, State: state, Err: err}
		}
		parentID = checkpointID

		if terminate || len(dedupAndDropSentinels(nextFrontier)) == 0 {
			e.flushPending(ctx, cfg.ThreadID)
			return RunResult{Status: StatusCompleted, State: state, CheckpointID: checkpointID}
		}
		frontier = nextFrontier
	}
}

// executeStep runs every node in active concurrently via the worker pool,
// honoring decisions for any planned tool call gated by ReviewConfig.
// It returns the step outcomes and, if any node requested a human review
// that decisions doesn't already resolve, the InterruptPayload to surface.
func (e *Engine) executeStep(ctx context.Context, runID, threadID string, stepNum int, active []string, state State, decisions map[string]Decision, checkpointID string) ([]step, *InterruptPayload) {
	results := make([]step, len(active))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var interrupted *InterruptPayload

	snapshot := state.Clone()

	for i, nodeName := range active {
		if nodeName == Start || nodeName == End {
			results[i] = step{node: nodeName, result: NodeResult{}}
			continue
		}
		i, nodeName := i, nodeName
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			e.cfg.metrics.InflightNodes(1)
			defer e.cfg.metrics.InflightNodes(-1)

			e.cfg.emitter.Emit(emit.Event{RunID: runID, Kind: emit.KindNodeStart, Step: stepNum, NodeID: nodeName})
			start := time.Now()
			res, err := e.invokeNode(ctx, nodeName, snapshot, checkpointID)
			elapsed := time.Since(start)

			if err == nil {
				runCtx := tool.RunContext{RunID: runID, ThreadID: threadID}
				var gate *InterruptPayload
				res, gate, err = e.processToolCalls(ctx, runCtx, nodeName, res, snapshot, decisions)
				if gate != nil {
					mu.Lock()
					if interrupted == nil {
						interrupted = gate
					}
					mu.Unlock()
				}
			}

			if err != nil {
				e.cfg.emitter.Emit(emit.Event{RunID: runID, Kind: emit.KindError, Step: stepNum, NodeID: nodeName, Msg: err.Error()})
			} else {
				e.cfg.emitter.Emit(emit.Event{RunID: runID, Kind: emit.KindNodeEnd, Step: stepNum, NodeID: nodeName})
			}

			mu.Lock()
			results[i] = step{node: nodeName, result: res, err: err, elapsed: elapsed}
			mu.Unlock()
		})
		if submitErr != nil {
			e.cfg.metrics.BackpressureEvents()
			results[i] = step{node: nodeName, err: submitErr}
			wg.Done()
		}
	}
	wg.Wait()

	if interrupted != nil {
		return results, interrupted
	}
	for _, r := range results {
		if r.result.Command != nil && r.result.Command.Kind == CommandInterrupt {
			return results, r.result.Command.Payload
		}
	}
	return results, nil
}

// processToolCalls runs a node's planned tool calls, gating any whose tool
// name is named in ReviewConfig behind a Decision. An ungated call runs
// immediately, as if pre-approved. A gated call without a matching Decision
// in decisions suspends the run with an InterruptPayload instead of
// running. Once a Decision is available:
//
//   - Approve runs the call with its original Input.
//   - Edit runs the call with Decision.EditedInput substituted for Input.
//   - Reject never calls the tool; the node instead observes a synthetic
//     outcome carrying Decision.Note as the rejection reason.
//
// Every outcome (successful call, rejection, or execution error) is folded
// into res.Updates under the call's ResultChannel, and any tool.Command the
// call returned is applied to res the same way a node's own Command would
// be.
func (e *Engine) processToolCalls(ctx context.Context, runCtx tool.RunContext, nodeName string, res NodeResult, state State, decisions map[string]Decision) (NodeResult, *InterruptPayload, error) {
	if len(res.PlannedToolCalls) == 0 {
		return res, nil, nil
	}

	var pending []ActionRequest
	var configs []ReviewConfigEntry
	for i, call := range res.PlannedToolCalls {
		gated := e.cfg.review.requiresReview(call.ToolName)
		actionID := fmt.Sprintf("%s:%s:%d", nodeName, call.ToolName, i)

		decision := Decision{ActionID: actionID, Kind: DecisionApprove}
		if gated {
			d, decided := decisions[actionID]
			if !decided {
				pending = append(pending, ActionRequest{ID: actionID, Name: call.ToolName, Args: call.Input, OriginNode: nodeName})
				configs = append(configs, ReviewConfigEntry{AllowedDecisions: e.cfg.review.allowedDecisionsFor(call.ToolName)})
				continue
			}
			if !e.cfg.review.allows(call.ToolName, d.Kind) {
				return res, nil, fmt.Errorf("graph: decision %q not allowed for tool %q", d.Kind, call.ToolName)
			}
			decision = d
		}

		if decision.Kind == DecisionReject {
			mergeToolOutcome(&res, call.ResultChannel, map[string]any{
				"tool_name": call.ToolName,
				"ok":        false,
				"reason":    decision.Note,
			})
			continue
		}

		input := call.Input
		if decision.Kind == DecisionEdit && decision.EditedInput != nil {
			input = decision.EditedInput
		}

		result, cmd, err := e.InvokeTool(ctx, call.ToolName, input, state, runCtx)
		if err != nil {
			mergeToolOutcome(&res, call.ResultChannel, map[string]any{
				"tool_name": call.ToolName,
				"ok":        false,
				"reason":    err.Error(),
			})
			continue
		}
		mergeToolOutcome(&res, call.ResultChannel, map[string]any{
			"tool_name": call.ToolName,
			"ok":        true,
			"result":    result,
		})
		applyToolCommand(&res, cmd)
	}

	if len(pending) > 0 {
		return res, &InterruptPayload{NodeID: nodeName, Reason: "tool call requires approval", ActionRequests: pending, ReviewConfigs: configs}, nil
	}
	return res, nil, nil
}

// mergeToolOutcome appends a tool call's outcome onto res.Updates[channel],
// preserving every prior entry the node's other planned calls wrote this
// step. A blank channel means the node didn't ask for the outcome back.
func mergeToolOutcome(res *NodeResult, channel string, outcome map[string]any) {
	if channel == "" {
		return
	}
	if res.Updates == nil {
		res.Updates = make(map[string]any)
	}
	existing, _ := res.Updates[channel].([]any)
	res.Updates[channel] = append(existing, outcome)
}

// applyToolCommand folds a tool's returned Command into res: UpdateState
// merges directly into res.Updates, Goto/End override res.Command the same
// way a node-issued Command would.
func applyToolCommand(res *NodeResult, cmd *tool.Command) {
	if cmd == nil {
		return
	}
	switch cmd.Kind {
	case tool.CommandUpdateState:
		if res.Updates == nil {
			res.Updates = make(map[string]any)
		}
		for k, v := range cmd.Fields {
			res.Updates[k] = v
		}
	case tool.CommandGoto:
		res.Command = &Command{Kind: CommandGoto, Goto: cmd.Node}
	case tool.CommandEnd:
		res.Command = &Command{Kind: CommandEnd}
	}
}

func (e *Engine) invokeNode(ctx context.Context, nodeName string, state State, checkpointID string) (NodeResult, error) {
	fn, ok := e.graph.nodes[nodeName]
	if !ok {
		return NodeResult{}, &UnknownNodeError{Node: nodeName}
	}
	policy := e.graph.policies[nodeName]
	timeout := policy.Timeout
	if timeout == 0 {
		timeout = e.cfg.defaultNodeTimeout
	}

	if policy.Deterministic && checkpointID != "" {
		if cached, ok := e.cache.lookup(checkpointID, nodeName, state); ok {
			return cached, nil
		}
	}

	var lastErr error
	attempts := policy.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			e.cfg.metrics.RetriesTotal(nodeName)
			time.Sleep(policy.Retry.backoff(attempt))
		}

		nodeCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			nodeCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		res, err := fn(nodeCtx, state)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if policy.Deterministic && checkpointID != "" {
				e.cache.record(checkpointID, nodeName, state, res)
			}
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return NodeResult{}, lastErr
}

func (e *Engine) persist(ctx context.Context, threadID string, cp store.Checkpoint) error {
	switch e.cfg.durability {
	case DurabilityAsync:
		go func() {
			_ = e.cfg.store.Put(context.Background(), cp)
		}()
		e.cfg.metrics.CheckpointsTotal(DurabilityAsync)
		return nil
	case DurabilityExit:
		e.mu.Lock()
		e.pending[threadID] = append(e.pending[threadID], cp)
		e.mu.Unlock()
		return nil
	default:
		if err := e.cfg.store.Put(ctx, cp); err != nil {
			return err
		}
		e.cfg.metrics.CheckpointsTotal(DurabilitySync)
		return nil
	}
}

func (e *Engine) flushPending(ctx context.Context, threadID string) {
	if e.cfg.durability != DurabilityExit {
		return
	}
	e.mu.Lock()
	batch := e.pending[threadID]
	delete(e.pending, threadID)
	e.mu.Unlock()

	for _, cp := range batch {
		_ = e.cfg.store.Put(ctx, cp)
		e.cfg.metrics.CheckpointsTotal(DurabilityExit)
	}
}

func cloneVersions(v map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func dedupAndDropSentinels(nodes []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range nodes {
		if n == Start || n == End || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// toolRuntime wires a Tool's Runtime into the engine's configured kv.Store,
// letting tool calls reach the long-term store without importing the
// engine internals directly.
type toolRuntime struct {
	state  map[string]any
	store  kv.Store
	runCtx tool.RunContext
	emit   func(text string)
}

func (r toolRuntime) State() map[string]any   { return r.state }
func (r toolRuntime) Store() kv.Store          { return r.store }
func (r toolRuntime) Context() tool.RunContext { return r.runCtx }
func (r toolRuntime) Stream(text string)       { r.emit(text) }

// InvokeTool runs a registered tool with a Runtime bound to state and the
// engine's kv.Store, for use from within a NodeFunc.
func (e *Engine) InvokeTool(ctx context.Context, name string, input map[string]any, state State, runCtx tool.RunContext) (map[string]any, *tool.Command, error) {
	t, ok := e.cfg.tools[name]
	if !ok {
		return nil, nil, fmt.Errorf("graph: unknown tool %q", name)
	}
	var rt tool.Runtime
	if t.RequiresRuntime() {
		rt = toolRuntime{
			state:  state.Values,
			store:  e.cfg.kvStore,
			runCtx: runCtx,
			emit: func(text string) {
				e.cfg.emitter.Emit(emit.Event{RunID: runCtx.RunID, Kind: emit.KindTokenDelta, Msg: text})
			},
		}
	}
	return t.Call(ctx, input, rt)
}
