package graph

import "fmt"

// ConditionalFunc inspects state after a super-step and returns the label
// that AddConditionalEdge's targets map turns into the next node.
type ConditionalFunc func(State) string

// edge is a static transition from one node to another.
type edge struct {
	from, to string
}

// conditionalEdge routes from one node to one of several targets keyed by
// the label ConditionalFunc returns.
type conditionalEdge struct {
	from    string
	decide  ConditionalFunc
	targets map[string]string
}

// Builder accumulates nodes and edges before Compile validates and freezes
// them into a Graph.
type Builder struct {
	schema      *Schema
	nodes       map[string]NodeFunc
	order       []string
	edges       []edge
	conditional []conditionalEdge
	policies    map[string]NodePolicy
}

// NewBuilder starts a Builder over the given channel schema.
func NewBuilder(schema *Schema) *Builder {
	return &Builder{
		schema:   schema,
		nodes:    make(map[string]NodeFunc),
		policies: make(map[string]NodePolicy),
	}
}

// AddNode registers a node body under name. name must not be Start or End
// and must not already be registered.
func (b *Builder) AddNode(name string, fn NodeFunc, opts ...NodeOption) *Builder {
	if name == Start || name == End {
		panic(fmt.Sprintf("graph: %q is a reserved node name", name))
	}
	if _, dup := b.nodes[name]; dup {
		panic(fmt.Sprintf("graph: node %q already added", name))
	}
	b.nodes[name] = fn
	b.order = append(b.order, name)
	policy := defaultNodePolicy()
	for _, opt := range opts {
		opt(&policy)
	}
	b.policies[name] = policy
	return b
}

// AddEdge adds a static transition. from or to may be Start/End.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges = append(b.edges, edge{from: from, to: to})
	return b
}

// AddConditionalEdge adds a branch: after from runs, decide(state) picks a
// label, and targets[label] is the next node.
func (b *Builder) AddConditionalEdge(from string, decide ConditionalFunc, targets map[string]string) *Builder {
	b.conditional = append(b.conditional, conditionalEdge{from: from, decide: decide, targets: targets})
	return b
}

// Compile validates the accumulated nodes and edges and freezes them into a
// Graph. It checks: every edge endpoint (other than Start/End) names a
// registered node, every node is reachable from Start, and every
// conditional edge's targets are registered nodes.
func (b *Builder) Compile() (*Graph, error) {
	for _, e := range b.edges {
		if err := b.checkNodeRef(e.from); err != nil {
			return nil, err
		}
		if err := b.checkNodeRef(e.to); err != nil {
			return nil, err
		}
	}
	for _, c := range b.conditional {
		if err := b.checkNodeRef(c.from); err != nil {
			return nil, err
		}
		for _, target := range c.targets {
			if err := b.checkNodeRef(target); err != nil {
				return nil, err
			}
		}
	}

	reachable := b.reachableFromStart()
	for _, name := range b.order {
		if !reachable[name] {
			return nil, &UnreachableNodeError{Node: name}
		}
	}

	g := &Graph{
		schema:      b.schema,
		nodes:       b.nodes,
		policies:    b.policies,
		staticOut:   make(map[string][]string),
		conditional: make(map[string]conditionalEdge),
	}
	for _, e := range b.edges {
		g.staticOut[e.from] = append(g.staticOut[e.from], e.to)
	}
	for _, c := range b.conditional {
		g.conditional[c.from] = c
	}
	return g, nil
}

func (b *Builder) checkNodeRef(name string) error {
	if name == Start || name == End {
		return nil
	}
	if _, ok := b.nodes[name]; !ok {
		return &UnknownNodeError{Node: name}
	}
	return nil
}

func (b *Builder) reachableFromStart() map[string]bool {
	adj := make(map[string][]string)
	for _, e := range b.edges {
		adj[e.from] = append(adj[e.from], e.to)
	}
	for _, c := range b.conditional {
		for _, target := range c.targets {
			adj[c.from] = append(adj[c.from], target)
		}
	}

	seen := map[string]bool{Start: true}
	queue := []string{Start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// Graph is a compiled, immutable node/edge topology over a Schema. Use
// NewEngine to execute it.
type Graph struct {
	schema      *Schema
	nodes       map[string]NodeFunc
	policies    map[string]NodePolicy
	staticOut   map[string][]string
	conditional map[string]conditionalEdge
}

// successors returns the next node names to trigger after from completes a
// super-step with the resulting state, applying any conditional edge
// registered for from.
func (g *Graph) successors(from string, state State) ([]string, error) {
	if cond, ok := g.conditional[from]; ok {
		label := cond.decide(state)
		target, ok := cond.targets[label]
		if !ok {
			return nil, fmt.Errorf("conditional edge from %q: no target for label %q", from, label)
		}
		return []string{target}, nil
	}
	return g.staticOut[from], nil
}
