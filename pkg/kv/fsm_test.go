package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFSMApplyWritesToBackend(t *testing.T) {
	backend := NewMemBackend()
	fsm := newMergeFSM(backend)

	data, err := marshalMergeCommand([]types.StateKey{key("t", "a")}, []types.Entry{present("1")})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Data: data})
	assert.Nil(t, result, "a successful apply returns a nil result")

	opt, err := backend.ReadOne(context.Background(), key("t", "a"))
	require.NoError(t, err)
	assert.True(t, opt.Found)
}

func TestMergeFSMApplyRemoveCommandDeletesTheKey(t *testing.T) {
	ctx := context.Background()
	backend := NewMemBackend()
	require.NoError(t, backend.WriteSome(ctx, []types.StateKey{key("t", "a"), key("t", "b")}, []types.Entry{present("1"), present("2")}))

	fsm := newMergeFSM(backend)
	data, err := marshalRemoveCommand([]types.StateKey{key("t", "a")})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Data: data})
	assert.Nil(t, result)

	opt, err := backend.ReadOne(ctx, key("t", "a"))
	require.NoError(t, err)
	assert.False(t, opt.Found, "a remove command applied through raft must actually delete the key, not leave a tombstone row")

	opt, err = backend.ReadOne(ctx, key("t", "b"))
	require.NoError(t, err)
	assert.True(t, opt.Found, "a remove command must not touch keys outside its batch")
}

func TestMergeFSMApplyWriteCommandWithTombstoneEntryPreservesIt(t *testing.T) {
	backend := NewMemBackend()
	fsm := newMergeFSM(backend)

	data, err := marshalMergeCommand([]types.StateKey{key("t", "a")}, []types.Entry{types.DeletedEntry()})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Data: data})
	assert.Nil(t, result)

	opt, err := backend.ReadOne(context.Background(), key("t", "a"))
	require.NoError(t, err)
	require.True(t, opt.Found, "a write command always writes literally, even a tombstone Entry, matching every other backend's WriteSome contract")
	assert.True(t, opt.Entry.IsDeleted())
}

func TestMergeFSMApplyMalformedCommandReturnsError(t *testing.T) {
	fsm := newMergeFSM(NewMemBackend())
	result := fsm.Apply(&raft.Log{Data: []byte("not json")})
	_, ok := result.(error)
	assert.True(t, ok, "a malformed command must surface as an error result")
}

func TestMergeFSMSnapshotAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := NewMemBackend()
	require.NoError(t, source.WriteSome(ctx, []types.StateKey{key("t", "a"), key("t", "b")}, []types.Entry{present("1"), present("2")}))

	fsm := newMergeFSM(source)
	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snap.Persist(&fakeSnapshotSink{Buffer: &buf}))

	dest := NewMemBackend()
	destFSM := newMergeFSM(dest)
	require.NoError(t, destFSM.Restore(io.NopCloser(&buf)))

	opt, err := dest.ReadOne(ctx, key("t", "a"))
	require.NoError(t, err)
	assert.True(t, opt.Found)
	opt, err = dest.ReadOne(ctx, key("t", "b"))
	require.NoError(t, err)
	assert.True(t, opt.Found)
}

func TestMergeFSMSnapshotOnBackendWithoutRowListerIsEmpty(t *testing.T) {
	fsm := newMergeFSM(&noListBackend{})
	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, snap.Persist(&fakeSnapshotSink{Buffer: &buf}))

	var rows []snapshotRow
	require.NoError(t, json.NewDecoder(&buf).Decode(&rows))
	assert.Empty(t, rows)
}

func TestMergeFSMRestoreEmptySnapshotIsNoOp(t *testing.T) {
	fsm := newMergeFSM(NewMemBackend())
	assert.NoError(t, fsm.Restore(io.NopCloser(bytes.NewBufferString("[]"))))
}

// fakeSnapshotSink is a minimal raft.SnapshotSink backed by a buffer, just
// enough to exercise mergeSnapshot.Persist without a real raft instance.
type fakeSnapshotSink struct {
	*bytes.Buffer
}

func (s *fakeSnapshotSink) ID() string    { return "test" }
func (s *fakeSnapshotSink) Cancel() error { return nil }
func (s *fakeSnapshotSink) Close() error  { return nil }

// noListBackend is a Backend that deliberately does not implement
// rowLister, exercising mergeFSM.Snapshot's fallback path.
type noListBackend struct{}

func (noListBackend) ReadOne(context.Context, types.StateKey) (OptEntry, error) {
	return OptEntry{}, nil
}
func (noListBackend) ReadSome(context.Context, []types.StateKey) ([]OptEntry, error) {
	return nil, nil
}
func (noListBackend) WriteSome(context.Context, []types.StateKey, []types.Entry) error { return nil }
func (noListBackend) RemoveSome(context.Context, []types.StateKey) error               { return nil }
func (noListBackend) Seek(context.Context, types.StateKey) (Cursor, error)              { return nil, nil }
func (noListBackend) Close() error                                                      { return nil }
