// Package graph provides the core graph execution engine: a Pregel-style
// super-step scheduler over a channel-based, checkpointed state.
package graph

import "fmt"

// Channel declares one field of the graph's shared state: a zero value and
// a reducer that folds the writes multiple nodes produced for it in a
// single super-step into a new value.
//
// Reduce receives updates in source-node-name ascending order, which is the
// one piece of cross-branch ordering the scheduler guarantees — reducers
// that care about "who wrote first" rely on this, not on goroutine
// scheduling order.
type Channel struct {
	Name   string
	Zero   func() any
	Reduce func(old any, updates []any) (any, error)
}

// Replace builds a channel whose reducer requires at most one writer per
// super-step; two concurrent writes to the same channel are a conflict.
func Replace(name string, zero func() any) Channel {
	return Channel{
		Name: name,
		Zero: zero,
		Reduce: func(old any, updates []any) (any, error) {
			if len(updates) == 0 {
				return old, nil
			}
			if len(updates) > 1 {
				return nil, &ConflictError{Channel: name, Count: len(updates)}
			}
			return updates[0], nil
		},
	}
}

// Append builds a channel that concatenates writes, in writer order, onto
// the existing slice. A write that is itself a []any contributes each of
// its elements; any other write is added as one element.
func Append(name string, zero func() any) Channel {
	return Channel{
		Name: name,
		Zero: zero,
		Reduce: func(old any, updates []any) (any, error) {
			list, err := asSlice(name, old)
			if err != nil {
				return nil, err
			}
			for _, u := range updates {
				if items, ok := u.([]any); ok {
					list = append(list, items...)
				} else {
					list = append(list, u)
				}
			}
			return list, nil
		},
	}
}

// AppendDedup builds a channel like Append but skips an incoming element
// when identity(element) matches an element already present — the shape
// the canonical "messages" channel needs so a replayed tool result doesn't
// get appended twice.
func AppendDedup(name string, zero func() any, identity func(any) string) Channel {
	return Channel{
		Name: name,
		Zero: zero,
		Reduce: func(old any, updates []any) (any, error) {
			list, err := asSlice(name, old)
			if err != nil {
				return nil, err
			}
			seen := make(map[string]struct{}, len(list))
			for _, item := range list {
				seen[identity(item)] = struct{}{}
			}

			flat := make([]any, 0, len(updates))
			for _, u := range updates {
				if items, ok := u.([]any); ok {
					flat = append(flat, items...)
				} else {
					flat = append(flat, u)
				}
			}

			for _, item := range flat {
				id := identity(item)
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				list = append(list, item)
			}
			return list, nil
		},
	}
}

// MergeMap builds a channel holding a map[string]any, merging writer maps
// key-by-key in writer order so later writers in the same step win a
// conflicting key rather than erroring.
func MergeMap(name string) Channel {
	return Channel{
		Name: name,
		Zero: func() any { return map[string]any{} },
		Reduce: func(old any, updates []any) (any, error) {
			merged, err := asMap(name, old)
			if err != nil {
				return nil, err
			}
			out := make(map[string]any, len(merged))
			for k, v := range merged {
				out[k] = v
			}
			for _, u := range updates {
				m, err := asMap(name, u)
				if err != nil {
					return nil, err
				}
				for k, v := range m {
					out[k] = v
				}
			}
			return out, nil
		},
	}
}

func asSlice(channel string, v any) ([]any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("channel %q: expected []any, got %T", channel, v)
	}
	return list, nil
}

func asMap(channel string, v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("channel %q: expected map[string]any, got %T", channel, v)
	}
	return m, nil
}
