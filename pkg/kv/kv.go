// Package kv defines the durable key/value backend contract (spec.md
// §4.1, component C1): an ordered, byte-keyed map with point/multi-key
// reads, atomic batched writes and removes, and a forward cursor for
// table seeks. A successful WriteSome return implies crash-safe
// persistence.
package kv

import (
	"context"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// OptEntry is the result of reading one key: either an entry was found,
// or it was absent entirely (as opposed to present-but-deleted).
type OptEntry struct {
	Entry types.Entry
	Found bool
}

// Backend is the durable ordered map every Store is ultimately backed by.
// Callers may invoke reads concurrently; writes are serialized by the
// caller (the multi-layer store only ever has one writer: the merge
// stage).
type Backend interface {
	ReadOne(ctx context.Context, key types.StateKey) (OptEntry, error)
	// ReadSome preserves the input key order in its result slice.
	ReadSome(ctx context.Context, keys []types.StateKey) ([]OptEntry, error)
	// WriteSome is atomic per batch.
	WriteSome(ctx context.Context, keys []types.StateKey, entries []types.Entry) error
	// RemoveSome is atomic per batch.
	RemoveSome(ctx context.Context, keys []types.StateKey) error
	// Seek returns a finite forward cursor starting at or after start, in
	// key order. Tombstones are surfaced, not hidden.
	Seek(ctx context.Context, start types.StateKey) (Cursor, error)
	Close() error
}

// Cursor is a finite forward sequence of (key, entry) pairs in key
// order. Next returns ok=false once exhausted.
type Cursor interface {
	Next(ctx context.Context) (key types.StateKey, entry types.Entry, ok bool, err error)
	Close() error
}
