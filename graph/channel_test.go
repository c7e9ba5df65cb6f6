package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplace_SingleWriteOK(t *testing.T) {
	ch := Replace("x", func() any { return 0 })
	out, err := ch.Reduce(0, []any{5})
	require.NoError(t, err)
	require.Equal(t, 5, out)
}

func TestReplace_ConcurrentWritesConflict(t *testing.T) {
	ch := Replace("x", func() any { return 0 })
	_, err := ch.Reduce(0, []any{1, 2})
	require.Error(t, err)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "x", conflict.Channel)
}

func TestReplace_NoWritesKeepsOld(t *testing.T) {
	ch := Replace("x", func() any { return 0 })
	out, err := ch.Reduce(7, nil)
	require.NoError(t, err)
	require.Equal(t, 7, out)
}

func TestAppend_ConcatenatesInWriterOrder(t *testing.T) {
	ch := Append("msgs", func() any { return []any{} })
	out, err := ch.Reduce([]any{"a"}, []any{"b", []any{"c", "d"}})
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b", "c", "d"}, out)
}

func TestAppendDedup_SkipsKnownIdentities(t *testing.T) {
	identity := func(v any) string { return v.(string) }
	ch := AppendDedup("msgs", func() any { return []any{} }, identity)

	out, err := ch.Reduce([]any{"a"}, []any{"b", "a", "c"})
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b", "c"}, out)
}

func TestMergeMap_LaterWriterWinsConflictingKey(t *testing.T) {
	ch := MergeMap("scratch")
	out, err := ch.Reduce(map[string]any{"k": "old"}, []any{
		map[string]any{"k": "from-a", "a": 1},
		map[string]any{"k": "from-b", "b": 2},
	})
	require.NoError(t, err)
	m := out.(map[string]any)
	require.Equal(t, "from-b", m["k"])
	require.Equal(t, 1, m["a"])
	require.Equal(t, 2, m["b"])
}

func TestSchema_ZeroState(t *testing.T) {
	schema, err := NewSchema(
		Replace("a", func() any { return "" }),
		Append("b", func() any { return []any{} }),
	)
	require.NoError(t, err)

	zero := schema.ZeroState()
	require.Equal(t, "", zero.Values["a"])
	require.Equal(t, []any{}, zero.Values["b"])
	require.Equal(t, uint64(0), zero.Versions["a"])
}

func TestSchema_DuplicateChannelRejected(t *testing.T) {
	_, err := NewSchema(Replace("a", func() any { return nil }), Replace("a", func() any { return nil }))
	require.Error(t, err)
}
