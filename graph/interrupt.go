package graph

import (
	"encoding/json"
	"fmt"
)

// InterruptPayload is surfaced to the caller when a run suspends, either
// because a node issued Command{Kind: CommandInterrupt} or because a
// planned tool call matched a ReviewConfig gate. Its JSON shape is the wire
// protocol's interrupt payload: action_requests paired positionally with
// review_configs.
type InterruptPayload struct {
	// NodeID is the node that triggered the interrupt. Local to this
	// process, not part of the wire payload.
	NodeID string `json:"-"`

	// Reason is a short human-readable explanation.
	Reason string `json:"reason,omitempty"`

	// ActionRequests are the concrete tool calls awaiting a Decision. A
	// node-level interrupt (Command{Kind: CommandInterrupt}) may carry none.
	ActionRequests []ActionRequest `json:"action_requests"`

	// ReviewConfigs mirrors ActionRequests positionally: ReviewConfigs[i]
	// names the decisions a reviewer may apply to ActionRequests[i].
	ReviewConfigs []ReviewConfigEntry `json:"review_configs"`

	// Data carries any other structured context the caller's reviewer UI
	// needs to render the request.
	Data map[string]any `json:"data,omitempty"`
}

// ActionRequest describes one tool call paused for human review.
type ActionRequest struct {
	// ID matches this request to a Decision.ActionID within this process.
	// Not part of the wire payload, whose resume protocol aligns decisions
	// with ActionRequests positionally instead.
	ID string `json:"-"`

	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
	OriginNode string         `json:"origin_node"`
}

// ReviewConfigEntry names the decisions permitted for the ActionRequest at
// the same index in InterruptPayload.
type ReviewConfigEntry struct {
	AllowedDecisions []DecisionKind `json:"allowed_decisions"`
}

// DecisionKind is the reviewer's verdict on an ActionRequest.
type DecisionKind int

const (
	// DecisionApprove runs the action with its original args.
	DecisionApprove DecisionKind = iota
	// DecisionEdit runs the action with EditedInput substituted for Args.
	DecisionEdit
	// DecisionReject cancels the action; the node observes a synthetic
	// result carrying Note as the rejection reason rather than an execution
	// error.
	DecisionReject
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionApprove:
		return "approve"
	case DecisionEdit:
		return "edit"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// MarshalJSON renders a DecisionKind as its wire string.
func (k DecisionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses a DecisionKind from its wire string.
func (k *DecisionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "approve":
		*k = DecisionApprove
	case "edit":
		*k = DecisionEdit
	case "reject":
		*k = DecisionReject
	default:
		return fmt.Errorf("graph: unknown decision kind %q", s)
	}
	return nil
}

// Decision is the reviewer's response to one ActionRequest, submitted via
// Engine.Resume. On the wire it is the bare string "approve", or an object
// keyed by "edit" or "reject":
//
//	"approve"
//	{"edit": {...new args...}}
//	{"reject": {"reason": "..."}}
type Decision struct {
	// ActionID matches this Decision to the ActionRequest.ID it answers.
	// Set when building a Decision from Go; ignored (and unmarshaled as
	// empty) when decoding a resume payload, whose wire protocol aligns
	// decisions with action_requests by position instead — see
	// DecisionsFromJSON.
	ActionID string `json:"-"`

	Kind        DecisionKind
	EditedInput map[string]any
	Note        string
}

// MarshalJSON renders a Decision in the resume payload's wire shape.
func (d Decision) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DecisionEdit:
		return json.Marshal(map[string]any{"edit": d.EditedInput})
	case DecisionReject:
		return json.Marshal(map[string]any{"reject": map[string]any{"reason": d.Note}})
	default:
		return json.Marshal("approve")
	}
}

// UnmarshalJSON parses a Decision from the resume payload's wire shape.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "approve" {
			return fmt.Errorf("graph: unknown decision %q", s)
		}
		*d = Decision{Kind: DecisionApprove}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("graph: decision must be \"approve\" or an edit/reject object: %w", err)
	}
	if raw, ok := obj["edit"]; ok {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
		*d = Decision{Kind: DecisionEdit, EditedInput: fields}
		return nil
	}
	if raw, ok := obj["reject"]; ok {
		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		*d = Decision{Kind: DecisionReject, Note: body.Reason}
		return nil
	}
	return fmt.Errorf("graph: decision object must have an \"edit\" or \"reject\" key")
}

// DecisionsFromJSON decodes a resume payload's "decisions" array against the
// ActionRequests it answers, assigning each Decision.ActionID by position —
// the wire protocol requires len(decisions) == len(requests) and aligns them
// by index rather than by any id in the payload.
func DecisionsFromJSON(requests []ActionRequest, raw []byte) ([]Decision, error) {
	var decisions []Decision
	if err := json.Unmarshal(raw, &decisions); err != nil {
		return nil, err
	}
	if len(decisions) != len(requests) {
		return nil, fmt.Errorf("graph: resume payload has %d decisions, want %d", len(decisions), len(requests))
	}
	for i := range decisions {
		decisions[i].ActionID = requests[i].ID
	}
	return decisions, nil
}

// ReviewConfig gates tool names behind human approval: a planned call to a
// gated tool suspends the run with an InterruptPayload instead of executing
// immediately.
type ReviewConfig struct {
	// GatedTools names the tools that require a Decision before running.
	GatedTools map[string]bool

	// AllowedDecisions narrows which DecisionKind a reviewer may apply to a
	// gated tool. A tool absent from this map (or mapped to an empty slice)
	// permits all three kinds.
	AllowedDecisions map[string][]DecisionKind
}

// requiresReview reports whether toolName must be paused for approval.
func (r ReviewConfig) requiresReview(toolName string) bool {
	if r.GatedTools == nil {
		return false
	}
	return r.GatedTools[toolName]
}

// allows reports whether kind is a permitted decision for toolName.
func (r ReviewConfig) allows(toolName string, kind DecisionKind) bool {
	allowed := r.allowedDecisionsFor(toolName)
	for _, k := range allowed {
		if k == kind {
			return true
		}
	}
	return false
}

// allowedDecisionsFor returns the decisions a reviewer may apply to
// toolName, defaulting to all three when AllowedDecisions doesn't narrow
// them.
func (r ReviewConfig) allowedDecisionsFor(toolName string) []DecisionKind {
	if allowed, ok := r.AllowedDecisions[toolName]; ok && len(allowed) > 0 {
		return allowed
	}
	return []DecisionKind{DecisionApprove, DecisionEdit, DecisionReject}
}
