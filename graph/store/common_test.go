package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// runConformanceSuite exercises the Store contract against any backend.
// Both MemoryStore and SQLiteStore(":memory:") run through this, so a bug
// in one backend's interpretation of the interface shows up immediately.
func runConformanceSuite(t *testing.T, newStore func() Store) {
	t.Run("get on empty thread returns ErrNotFound", func(t *testing.T) {
		s := newStore()
		_, err := s.Get(context.Background(), "thread-1", "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put then get latest", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()

		root := Checkpoint{
			ThreadID:     "thread-1",
			CheckpointID: "cp-1",
			CreatedAt:    time.Now(),
			Values:       map[string]any{"counter": float64(1)},
			Versions:     map[string]uint64{"counter": 1},
		}
		require.NoError(t, s.Put(ctx, root))

		child := root
		child.CheckpointID = "cp-2"
		child.ParentID = "cp-1"
		child.CreatedAt = root.CreatedAt.Add(time.Millisecond)
		child.Values = map[string]any{"counter": float64(2)}
		child.Versions = map[string]uint64{"counter": 2}
		require.NoError(t, s.Put(ctx, child))

		latest, err := s.Get(ctx, "thread-1", "")
		require.NoError(t, err)
		require.Equal(t, "cp-2", latest.CheckpointID)
		require.Equal(t, "cp-1", latest.ParentID)

		byID, err := s.Get(ctx, "thread-1", "cp-1")
		require.NoError(t, err)
		require.Equal(t, "cp-1", byID.CheckpointID)
		require.Empty(t, byID.ParentID)
	})

	t.Run("list returns newest first and honors limit", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()
		base := time.Now()

		for i := 0; i < 3; i++ {
			cp := Checkpoint{
				ThreadID:     "thread-2",
				CheckpointID: string(rune('a' + i)),
				CreatedAt:    base.Add(time.Duration(i) * time.Millisecond),
				Values:       map[string]any{},
				Versions:     map[string]uint64{},
			}
			require.NoError(t, s.Put(ctx, cp))
		}

		all, err := s.List(ctx, "thread-2", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "c", all[0].CheckpointID)
		require.Equal(t, "a", all[2].CheckpointID)

		limited, err := s.List(ctx, "thread-2", 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
	})

	t.Run("fork creates a sibling branch sharing a parent", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()

		root := Checkpoint{ThreadID: "thread-3", CheckpointID: "root", CreatedAt: time.Now(), Values: map[string]any{}, Versions: map[string]uint64{}}
		require.NoError(t, s.Put(ctx, root))

		branchA := root
		branchA.CheckpointID = "branch-a"
		branchA.ParentID = "root"
		branchA.CreatedAt = root.CreatedAt.Add(time.Millisecond)
		require.NoError(t, s.Put(ctx, branchA))

		branchB := root
		branchB.CheckpointID = "branch-b"
		branchB.ParentID = "root"
		branchB.CreatedAt = root.CreatedAt.Add(2 * time.Millisecond)
		require.NoError(t, s.Put(ctx, branchB))

		all, err := s.List(ctx, "thread-3", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)

		parents := map[string]int{}
		for _, cp := range all {
			if cp.ParentID == "root" {
				parents["root"]++
			}
		}
		require.Equal(t, 2, parents["root"])
	})

	t.Run("put writes and delete thread", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()

		require.NoError(t, s.PutWrites(ctx, "thread-4", "cp-1", []PendingWrite{
			{NodeID: "a", Channel: "messages", Value: "hello"},
		}))

		cp := Checkpoint{ThreadID: "thread-4", CheckpointID: "cp-1", CreatedAt: time.Now(), Values: map[string]any{}, Versions: map[string]uint64{}}
		require.NoError(t, s.Put(ctx, cp))

		require.NoError(t, s.DeleteThread(ctx, "thread-4"))
		_, err := s.Get(ctx, "thread-4", "")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete thread does not affect a thread whose id shares a prefix", func(t *testing.T) {
		s := newStore()
		ctx := context.Background()

		require.NoError(t, s.PutWrites(ctx, "t1", "cp-1", []PendingWrite{
			{NodeID: "a", Channel: "messages", Value: "from t1"},
		}))
		require.NoError(t, s.PutWrites(ctx, "t12", "cp-1", []PendingWrite{
			{NodeID: "a", Channel: "messages", Value: "from t12"},
		}))
		require.NoError(t, s.Put(ctx, Checkpoint{ThreadID: "t1", CheckpointID: "cp-1", CreatedAt: time.Now(), Values: map[string]any{}, Versions: map[string]uint64{}}))
		require.NoError(t, s.Put(ctx, Checkpoint{ThreadID: "t12", CheckpointID: "cp-1", CreatedAt: time.Now(), Values: map[string]any{}, Versions: map[string]uint64{}}))

		require.NoError(t, s.DeleteThread(ctx, "t1"))

		_, err := s.Get(ctx, "t1", "")
		require.ErrorIs(t, err, ErrNotFound)

		cp, err := s.Get(ctx, "t12", "")
		require.NoError(t, err)
		require.Equal(t, "t12", cp.ThreadID)
	})
}

func TestMemoryStore_Conformance(t *testing.T) {
	runConformanceSuite(t, func() Store { return NewMemoryStore() })
}

func TestSQLiteStore_Conformance(t *testing.T) {
	runConformanceSuite(t, func() Store {
		s, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
