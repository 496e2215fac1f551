// Package state implements the multi-layer versioned key/value state
// (spec.md §4.2-§4.3, components C2/C3): an in-memory mutable overlay, its
// frozen immutable snapshot, and the Store that stacks these on top of a
// durable kv.Backend with top-down, first-Present-wins reads.
package state

import (
	"context"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// Interface is the minimal read/write/remove/scan surface that Store,
// rollback.Log, and rwset.Tracker all satisfy, letting each be wrapped by
// the next without depending on each other's concrete type. Scan is not
// part of the core C3 point-read contract, but precompiled handlers that
// need to enumerate a table (table.go's Select) must still go through
// whichever wrapper sits above the store, so writes and reads they issue
// are journaled and tracked like any other.
type Interface interface {
	Read(ctx context.Context, key types.StateKey) (types.Entry, bool, error)
	Write(ctx context.Context, key types.StateKey, entry types.Entry) error
	Remove(ctx context.Context, key types.StateKey) error
	Scan(ctx context.Context, table string) ([]types.StateKey, []types.Entry, error)
}
