package kv

import (
	"context"
	"testing"
	"time"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendFactories lets every contract test run against each concrete
// Backend implementation so none can silently drift from the others'
// observable behavior.
func backendFactories(t *testing.T) map[string]func() Backend {
	t.Helper()
	return map[string]func() Backend{
		"mem": func() Backend { return NewMemBackend() },
		"bolt": func() Backend {
			backend, err := NewBoltBackend(t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { _ = backend.Close() })
			return backend
		},
		"raft": func() Backend {
			// A freshly bootstrapped single-node cluster still has to
			// complete its own leader election before the first Apply
			// commits, so the apply timeout needs headroom beyond a
			// steady-state round trip.
			backend, err := NewRaftBackend("test-node", t.TempDir(), NewMemBackend(), 5*time.Second)
			require.NoError(t, err)
			t.Cleanup(func() { _ = backend.Close() })
			return backend
		},
	}
}

func key(table, row string) types.StateKey {
	return types.StateKey{Table: table, RowKey: []byte(row)}
}

func present(v string) types.Entry {
	return types.NewPresentEntry(map[string][]byte{"v": []byte(v)})
}

func forEachBackend(t *testing.T, run func(t *testing.T, backend Backend)) {
	for name, factory := range backendFactories(t) {
		name, factory := name, factory
		t.Run(name, func(t *testing.T) {
			run(t, factory())
		})
	}
}

func TestBackendReadOneMissingKeyIsNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		opt, err := backend.ReadOne(context.Background(), key("t", "missing"))
		require.NoError(t, err)
		assert.False(t, opt.Found)
	})
}

func TestBackendWriteThenReadOne(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx, []types.StateKey{key("t", "a")}, []types.Entry{present("1")}))

		opt, err := backend.ReadOne(ctx, key("t", "a"))
		require.NoError(t, err)
		require.True(t, opt.Found)
		v, _ := opt.Entry.Field("v")
		assert.Equal(t, "1", string(v))
	})
}

func TestBackendWriteOverwritesExistingKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx, []types.StateKey{key("t", "a")}, []types.Entry{present("1")}))
		require.NoError(t, backend.WriteSome(ctx, []types.StateKey{key("t", "a")}, []types.Entry{present("2")}))

		opt, err := backend.ReadOne(ctx, key("t", "a"))
		require.NoError(t, err)
		v, _ := opt.Entry.Field("v")
		assert.Equal(t, "2", string(v))
	})
}

func TestBackendReadSomePreservesInputOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx,
			[]types.StateKey{key("t", "a"), key("t", "b")},
			[]types.Entry{present("1"), present("2")}))

		opts, err := backend.ReadSome(ctx, []types.StateKey{key("t", "b"), key("t", "missing"), key("t", "a")})
		require.NoError(t, err)
		require.Len(t, opts, 3)

		v, _ := opts[0].Entry.Field("v")
		assert.Equal(t, "2", string(v))
		assert.False(t, opts[1].Found)
		v, _ = opts[2].Entry.Field("v")
		assert.Equal(t, "1", string(v))
	})
}

func TestBackendRemoveSomeDeletesKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx, []types.StateKey{key("t", "a")}, []types.Entry{present("1")}))
		require.NoError(t, backend.RemoveSome(ctx, []types.StateKey{key("t", "a")}))

		opt, err := backend.ReadOne(ctx, key("t", "a"))
		require.NoError(t, err)
		assert.False(t, opt.Found)
	})
}

func TestBackendRemoveSomeOnMissingKeyIsNoOp(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		assert.NoError(t, backend.RemoveSome(context.Background(), []types.StateKey{key("t", "missing")}))
	})
}

func TestBackendSeekYieldsKeysInOrderFromTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx,
			[]types.StateKey{key("t", "b"), key("t", "a"), key("t", "c"), key("other", "z")},
			[]types.Entry{present("2"), present("1"), present("3"), present("other")}))

		cursor, err := backend.Seek(ctx, key("t", ""))
		require.NoError(t, err)
		defer cursor.Close()

		var rows []string
		for {
			k, entry, ok, err := cursor.Next(ctx)
			require.NoError(t, err)
			if !ok {
				break
			}
			require.Equal(t, "t", k.Table)
			v, _ := entry.Field("v")
			rows = append(rows, string(v))
		}
		assert.Equal(t, []string{"1", "2", "3"}, rows)
	})
}

func TestBackendSeekOnEmptyTableYieldsNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		cursor, err := backend.Seek(context.Background(), key("empty", ""))
		require.NoError(t, err)
		defer cursor.Close()

		_, _, ok, err := cursor.Next(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBackendSeekStartsAtOrAfterGivenRowKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx,
			[]types.StateKey{key("t", "a"), key("t", "b"), key("t", "c")},
			[]types.Entry{present("1"), present("2"), present("3")}))

		cursor, err := backend.Seek(ctx, key("t", "b"))
		require.NoError(t, err)
		defer cursor.Close()

		k, _, ok, err := cursor.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", string(k.RowKey))
	})
}

func TestBackendTombstoneIsSurfacedByReadAndSeek(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx, []types.StateKey{key("t", "a")}, []types.Entry{types.DeletedEntry()}))

		opt, err := backend.ReadOne(ctx, key("t", "a"))
		require.NoError(t, err)
		require.True(t, opt.Found, "a tombstone row is still present, just marked deleted")
		assert.True(t, opt.Entry.IsDeleted())

		cursor, err := backend.Seek(ctx, key("t", ""))
		require.NoError(t, err)
		defer cursor.Close()
		_, entry, ok, err := cursor.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, entry.IsDeleted())
	})
}

// rowListers are the optional backends mergeFSM uses to build a Raft
// snapshot; all three concrete implementations satisfy it.
func TestBackendAllRowsEnumeratesEveryRow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, backend Backend) {
		lister, ok := backend.(rowLister)
		require.True(t, ok, "%T must implement rowLister", backend)

		ctx := context.Background()
		require.NoError(t, backend.WriteSome(ctx,
			[]types.StateKey{key("t1", "a"), key("t2", "b")},
			[]types.Entry{present("1"), present("2")}))

		rows, err := lister.allRows(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}
