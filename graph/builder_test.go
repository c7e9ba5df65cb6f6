package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func intSchema(t *testing.T) *Schema {
	t.Helper()
	schema, err := NewSchema(Replace("counter", func() any { return 0 }))
	require.NoError(t, err)
	return schema
}

func noopNode(ctx context.Context, in State) (NodeResult, error) {
	return NodeResult{}, nil
}

func TestCompile_RejectsUnknownEdgeTarget(t *testing.T) {
	b := NewBuilder(intSchema(t))
	b.AddNode("a", noopNode)
	b.AddEdge(Start, "a")
	b.AddEdge("a", "ghost")

	_, err := b.Compile()
	require.Error(t, err)
	var unknown *UnknownNodeError
	require.ErrorAs(t, err, &unknown)
}

func TestCompile_RejectsUnreachableNode(t *testing.T) {
	b := NewBuilder(intSchema(t))
	b.AddNode("a", noopNode)
	b.AddNode("orphan", noopNode)
	b.AddEdge(Start, "a")
	b.AddEdge("a", End)

	_, err := b.Compile()
	require.Error(t, err)
	var unreachable *UnreachableNodeError
	require.ErrorAs(t, err, &unreachable)
	require.Equal(t, "orphan", unreachable.Node)
}

func TestCompile_ReservedNodeNamePanics(t *testing.T) {
	b := NewBuilder(intSchema(t))
	require.Panics(t, func() { b.AddNode(Start, noopNode) })
}

func TestCompile_ConditionalEdgeRoutesByLabel(t *testing.T) {
	b := NewBuilder(intSchema(t))
	b.AddNode("a", noopNode)
	b.AddNode("even", noopNode)
	b.AddNode("odd", noopNode)
	b.AddEdge(Start, "a")
	b.AddConditionalEdge("a", func(s State) string {
		if s.Values["counter"].(int)%2 == 0 {
			return "even"
		}
		return "odd"
	}, map[string]string{"even": "even", "odd": "odd"})
	b.AddEdge("even", End)
	b.AddEdge("odd", End)

	g, err := b.Compile()
	require.NoError(t, err)

	next, err := g.successors("a", State{Values: map[string]any{"counter": 4}})
	require.NoError(t, err)
	require.Equal(t, []string{"even"}, next)
}
