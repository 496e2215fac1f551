package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// RaftBackend wraps a durable Backend so every WriteSome passes through a
// single-node Raft log before landing on disk, grounded on the teacher's
// pkg/manager.Manager.Bootstrap: DefaultConfig, a BoltDB-backed log and
// stable store, a file snapshot store, and BootstrapCluster with this
// node as the lone voter. Consensus and replication across nodes stay
// out of scope (spec.md §1 Non-goals); what's reused here is the
// FSM-apply idiom itself, which makes "merge a frozen layer into the
// backend" crash-safe and replayable the same way raft made cluster
// mutations crash-safe for the teacher.
type RaftBackend struct {
	inner Backend
	fsm   *mergeFSM
	raft  *raft.Raft
	apply time.Duration
}

// NewRaftBackend bootstraps a single-node Raft group over inner,
// persisting its log and snapshots under dataDir. applyTimeout bounds
// how long WriteSome waits for a batch to commit.
func NewRaftBackend(nodeID, dataDir string, inner Backend, applyTimeout time.Duration) (*RaftBackend, error) {
	fsm := newMergeFSM(inner)

	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(nodeID)

	_, transport := raft.NewInmemTransport(raft.ServerAddress(nodeID))

	snapshotStore, err := raft.NewFileSnapshotStore(dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("kv: failed to create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("kv: failed to create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(config, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to start raft: %w", err)
	}

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("kv: failed to bootstrap raft cluster: %w", err)
	}

	return &RaftBackend{inner: inner, fsm: fsm, raft: r, apply: applyTimeout}, nil
}

func (b *RaftBackend) ReadOne(ctx context.Context, key types.StateKey) (OptEntry, error) {
	return b.inner.ReadOne(ctx, key)
}

func (b *RaftBackend) ReadSome(ctx context.Context, keys []types.StateKey) ([]OptEntry, error) {
	return b.inner.ReadSome(ctx, keys)
}

// WriteSome replicates the batch through the Raft log before it reaches
// the backend; mergeFSM.Apply is what actually calls inner.WriteSome
// once the entry commits.
func (b *RaftBackend) WriteSome(_ context.Context, keys []types.StateKey, entries []types.Entry) error {
	data, err := marshalMergeCommand(keys, entries)
	if err != nil {
		return fmt.Errorf("kv: failed to encode merge command: %w", err)
	}
	return b.applyCommand(data)
}

// RemoveSome replicates the removal through the Raft log as a distinct
// remove command, so mergeFSM.Apply routes it to inner.RemoveSome and
// the key is actually deleted rather than landing as a tombstone row
// (which is what WriteSome's own contract would do with a tombstone
// Entry — removal needs its own command so Apply can tell the two
// apart).
func (b *RaftBackend) RemoveSome(_ context.Context, keys []types.StateKey) error {
	data, err := marshalRemoveCommand(keys)
	if err != nil {
		return fmt.Errorf("kv: failed to encode remove command: %w", err)
	}
	return b.applyCommand(data)
}

func (b *RaftBackend) applyCommand(data []byte) error {
	future := b.raft.Apply(data, b.apply)
	if err := future.Error(); err != nil {
		return fmt.Errorf("kv: raft apply failed: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok {
			return fmt.Errorf("kv: merge apply rejected: %w", err)
		}
	}
	return nil
}

func (b *RaftBackend) Seek(ctx context.Context, start types.StateKey) (Cursor, error) {
	return b.inner.Seek(ctx, start)
}

// allRows delegates to the wrapped backend's own rowLister, so a
// RaftBackend built over a lister-capable inner backend is itself
// lister-capable (used only by mergeFSM.Snapshot, not by replication).
func (b *RaftBackend) allRows(ctx context.Context) ([]snapshotRow, error) {
	lister, ok := b.inner.(rowLister)
	if !ok {
		return nil, fmt.Errorf("kv: inner backend %T does not support row listing", b.inner)
	}
	return lister.allRows(ctx)
}

func (b *RaftBackend) Close() error {
	if err := b.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("kv: raft shutdown failed: %w", err)
	}
	return b.inner.Close()
}

func marshalMergeCommand(keys []types.StateKey, entries []types.Entry) ([]byte, error) {
	return json.Marshal(mergeCommand{Keys: keys, Entries: entries})
}

func marshalRemoveCommand(keys []types.StateKey) ([]byte, error) {
	return json.Marshal(mergeCommand{Keys: keys, Remove: true})
}
