package rwset

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

func newTrackedStore(t *testing.T) (*state.Store, *Tracker) {
	t.Helper()
	store := state.NewStore(kv.NewMemBackend())
	require.NoError(t, store.PushMutable())
	return store, New(store)
}

func TestTrackerRecordsReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	_, tracker := newTrackedStore(t)

	require.NoError(t, tracker.Write(ctx, key("a"), present("1")))
	_, _, err := tracker.Read(ctx, key("b"))
	require.NoError(t, err)

	flagA, ok := tracker.FlagFor(key("a"))
	require.True(t, ok)
	assert.True(t, flagA.Write)
	assert.False(t, flagA.Read)

	flagB, ok := tracker.FlagFor(key("b"))
	require.True(t, ok)
	assert.True(t, flagB.Read)
	assert.False(t, flagB.Write)
}

func TestTrackerWriteAfterReadKeepsReadFlag(t *testing.T) {
	ctx := context.Background()
	_, tracker := newTrackedStore(t)

	_, _, err := tracker.Read(ctx, key("a"))
	require.NoError(t, err)
	require.NoError(t, tracker.Write(ctx, key("a"), present("1")))

	flag, ok := tracker.FlagFor(key("a"))
	require.True(t, ok)
	assert.True(t, flag.Read)
	assert.True(t, flag.Write)
}

func TestTrackerScanMarksYieldedKeysAsRead(t *testing.T) {
	ctx := context.Background()
	_, tracker := newTrackedStore(t)

	require.NoError(t, tracker.Write(ctx, key("a"), present("1")))
	require.NoError(t, tracker.Write(ctx, key("b"), present("2")))

	_, _, err := tracker.Scan(ctx, "t")
	require.NoError(t, err)

	flagA, ok := tracker.FlagFor(key("a"))
	require.True(t, ok)
	assert.True(t, flagA.Read)
	flagB, ok := tracker.FlagFor(key("b"))
	require.True(t, ok)
	assert.True(t, flagB.Read)
}

func TestTrackerKeysReturnsEveryTrackedKey(t *testing.T) {
	ctx := context.Background()
	_, tracker := newTrackedStore(t)
	require.NoError(t, tracker.Write(ctx, key("a"), present("1")))
	_, _, err := tracker.Read(ctx, key("b"))
	require.NoError(t, err)

	assert.Len(t, tracker.Keys(), 2)
}

func TestHasRAWConflictDetectsReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	_, committed := newTrackedStore(t)
	require.NoError(t, committed.Write(ctx, key("shared"), present("1")))

	_, candidate := newTrackedStore(t)
	_, _, err := candidate.Read(ctx, key("shared"))
	require.NoError(t, err)

	assert.True(t, committed.HasRAWConflict(candidate))
}

func TestHasRAWConflictIsFalseWhenNoOverlap(t *testing.T) {
	ctx := context.Background()
	_, committed := newTrackedStore(t)
	require.NoError(t, committed.Write(ctx, key("a"), present("1")))

	_, candidate := newTrackedStore(t)
	_, _, err := candidate.Read(ctx, key("b"))
	require.NoError(t, err)

	assert.False(t, committed.HasRAWConflict(candidate))
}

func TestHasRAWConflictIgnoresCandidateWriteOnlyKeys(t *testing.T) {
	ctx := context.Background()
	_, committed := newTrackedStore(t)
	require.NoError(t, committed.Write(ctx, key("shared"), present("1")))

	_, candidate := newTrackedStore(t)
	require.NoError(t, candidate.Write(ctx, key("shared"), present("2")))

	// candidate only wrote "shared", never read it, so this is a
	// write-write pair, not a read-after-write conflict.
	assert.False(t, committed.HasRAWConflict(candidate))
}

func TestHasRAWConflictIsFalseWithEmptyTrackers(t *testing.T) {
	_, committed := newTrackedStore(t)
	_, candidate := newTrackedStore(t)
	assert.False(t, committed.HasRAWConflict(candidate))
}

func TestMergeWritesUnionsWriteKeysOnly(t *testing.T) {
	ctx := context.Background()
	_, dest := newTrackedStore(t)
	require.NoError(t, dest.Write(ctx, key("existing"), present("1")))

	_, src := newTrackedStore(t)
	require.NoError(t, src.Write(ctx, key("new-write"), present("2")))
	_, _, err := src.Read(ctx, key("new-read"))
	require.NoError(t, err)

	dest.MergeWrites(src)

	_, ok := dest.FlagFor(key("new-write"))
	assert.True(t, ok, "a write key from the source tracker must be folded in")
	_, ok = dest.FlagFor(key("new-read"))
	assert.False(t, ok, "a read-only key from the source tracker must not be folded in")
}
