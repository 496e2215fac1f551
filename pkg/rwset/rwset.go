// Package rwset implements the per-chunk read/write-set tracker (spec.md
// §4.5, component C5), grounded on
// original_source/transaction-scheduler/bcos-transaction-scheduler/ReadWriteSetStorage.h.
package rwset

import (
	"context"

	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// Flag records whether a key was read, written, or both during a
// Tracker's lifetime. A write on a previously-read key leaves Read set.
type Flag struct {
	Read  bool
	Write bool
}

// rowFlag pairs a key with its flag, since StateKey's []byte RowKey makes
// it unusable as a map key directly.
type rowFlag struct {
	key  types.StateKey
	flag Flag
}

// Tracker wraps a state.Interface and records every key read or written
// through it. It must be used single-threaded per instance; trackers
// belonging to different chunks are compared only after both chunks have
// finished running.
type Tracker struct {
	wrapped state.Interface
	set     map[string]rowFlag
}

// New wraps the given store in a read/write-set tracker.
func New(wrapped state.Interface) *Tracker {
	return &Tracker{wrapped: wrapped, set: make(map[string]rowFlag)}
}

func (t *Tracker) mark(key types.StateKey, write bool) {
	canon := key.Canonical()
	rf, ok := t.set[canon]
	if !ok {
		rf = rowFlag{key: key}
	}
	if write {
		rf.flag.Write = true
	} else {
		rf.flag.Read = true
	}
	t.set[canon] = rf
}

// Read records the key as read, then delegates to the wrapped store.
func (t *Tracker) Read(ctx context.Context, key types.StateKey) (types.Entry, bool, error) {
	t.mark(key, false)
	return t.wrapped.Read(ctx, key)
}

// Scan delegates to the wrapped store and records every yielded key as
// read, so a chunk that selects over a table conflicts with another
// chunk's writes into that table exactly as a point read would.
func (t *Tracker) Scan(ctx context.Context, table string) ([]types.StateKey, []types.Entry, error) {
	keys, entries, err := t.wrapped.Scan(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	for _, key := range keys {
		t.mark(key, false)
	}
	return keys, entries, nil
}

// Write records the key as written, then delegates to the wrapped store.
func (t *Tracker) Write(ctx context.Context, key types.StateKey, entry types.Entry) error {
	t.mark(key, true)
	return t.wrapped.Write(ctx, key, entry)
}

// Remove records the key as written, then delegates to the wrapped store.
func (t *Tracker) Remove(ctx context.Context, key types.StateKey) error {
	t.mark(key, true)
	return t.wrapped.Remove(ctx, key)
}

// Keys returns the tracked keys, in no particular order; FlagFor reports
// each key's flag.
func (t *Tracker) Keys() []types.StateKey {
	keys := make([]types.StateKey, 0, len(t.set))
	for _, rf := range t.set {
		keys = append(keys, rf.key)
	}
	return keys
}

// FlagFor returns the flag recorded for key, if any.
func (t *Tracker) FlagFor(key types.StateKey) (Flag, bool) {
	rf, ok := t.set[key.Canonical()]
	return rf.flag, ok
}

// MergeWrites unions other's write keys into this tracker's set, marking
// each as written; keys other only read are not copied.
func (t *Tracker) MergeWrites(other *Tracker) {
	for _, rf := range other.set {
		if rf.flag.Write {
			t.mark(rf.key, true)
		}
	}
}

// HasRAWConflict is the asymmetric read-after-write test of P4: true iff
// some key read by candidate was written by the receiver. A key the
// receiver only read does not count, so reads-only-vs-reads-only is not a
// conflict. Call as committed.HasRAWConflict(candidate).
func (t *Tracker) HasRAWConflict(candidate *Tracker) bool {
	if len(t.set) == 0 || len(candidate.set) == 0 {
		return false
	}
	for canon, rf := range candidate.set {
		if !rf.flag.Read {
			continue
		}
		if committed, ok := t.set[canon]; ok && committed.flag.Write {
			return true
		}
	}
	return false
}
