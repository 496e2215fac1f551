package rollback

import (
	"context"
	"testing"

	"github.com/fiscobcos/tx-scheduler/pkg/kv"
	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(row string) types.StateKey {
	return types.StateKey{Table: "t", RowKey: []byte(row)}
}

func present(v string) types.Entry {
	return types.NewPresentEntry(map[string][]byte{"v": []byte(v)})
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	store := state.NewStore(kv.NewMemBackend())
	require.NoError(t, store.PushMutable())
	return store
}

func TestRollbackRestoresPreviouslyAbsentKey(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	sp := log.Savepoint()
	require.NoError(t, log.Write(ctx, key("a"), present("1")))

	_, ok, err := log.Read(ctx, key("a"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, log.Rollback(ctx, sp))

	_, ok, err = log.Read(ctx, key("a"))
	require.NoError(t, err)
	assert.False(t, ok, "a key absent before the savepoint must be absent again after rollback")
}

func TestRollbackRestoresPriorValue(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	require.NoError(t, log.Write(ctx, key("a"), present("original")))
	sp := log.Savepoint()
	require.NoError(t, log.Write(ctx, key("a"), present("overwritten")))

	require.NoError(t, log.Rollback(ctx, sp))

	entry, ok, err := log.Read(ctx, key("a"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := entry.Field("v")
	assert.Equal(t, "original", string(v))
}

func TestRollbackUndoesRemove(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	require.NoError(t, log.Write(ctx, key("a"), present("original")))
	sp := log.Savepoint()
	require.NoError(t, log.Remove(ctx, key("a")))

	_, ok, err := log.Read(ctx, key("a"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, log.Rollback(ctx, sp))

	entry, ok, err := log.Read(ctx, key("a"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := entry.Field("v")
	assert.Equal(t, "original", string(v))
}

func TestRollbackToZeroUndoesEverything(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	require.NoError(t, log.Write(ctx, key("a"), present("1")))
	require.NoError(t, log.Write(ctx, key("b"), present("2")))
	require.NoError(t, log.Remove(ctx, key("a")))

	require.NoError(t, log.Rollback(ctx, Savepoint(0)))

	_, ok, err := log.Read(ctx, key("a"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = log.Read(ctx, key("b"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Savepoint(0), log.Current())
}

func TestRollbackIsNestable(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	require.NoError(t, log.Write(ctx, key("a"), present("1")))
	outer := log.Savepoint()

	require.NoError(t, log.Write(ctx, key("b"), present("2")))
	inner := log.Savepoint()

	require.NoError(t, log.Write(ctx, key("c"), present("3")))
	require.NoError(t, log.Rollback(ctx, inner))

	// "c" is undone, but "a" and "b" survive the inner rollback.
	_, ok, err := log.Read(ctx, key("c"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = log.Read(ctx, key("b"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, log.Rollback(ctx, outer))

	// now "b" is undone too, but "a" survives.
	_, ok, err = log.Read(ctx, key("b"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = log.Read(ctx, key("a"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRollbackToCurrentSavepointIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	require.NoError(t, log.Write(ctx, key("a"), present("1")))
	sp := log.Savepoint()
	require.NoError(t, log.Rollback(ctx, sp))

	entry, ok, err := log.Read(ctx, key("a"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := entry.Field("v")
	assert.Equal(t, "1", string(v))
}

func TestScanPassesThroughToWrappedStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	log := New(store)

	require.NoError(t, log.Write(ctx, key("a"), present("1")))
	require.NoError(t, log.Write(ctx, key("b"), present("2")))

	keys, entries, err := log.Scan(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Len(t, entries, 2)
}
