package state

import (
	"sort"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// row pairs a StateKey with its entry; layers key their internal maps on
// StateKey.Canonical() since RowKey's []byte makes StateKey itself
// unusable as a map key.
type row struct {
	key   types.StateKey
	entry types.Entry
}

// MutableLayer is an in-memory, single-writer overlay for one block (or
// one chunk, when forked). It is never shared across goroutines.
type MutableLayer struct {
	rows   map[string]row
	dirty  bool
	frozen bool
}

// NewMutableLayer returns an empty mutable layer.
func NewMutableLayer() *MutableLayer {
	return &MutableLayer{rows: make(map[string]row)}
}

// Get returns the layer-local value for key, if any.
func (l *MutableLayer) Get(key types.StateKey) (types.Entry, bool) {
	r, ok := l.rows[key.Canonical()]
	return r.entry, ok
}

// Put writes a value in place. Panics if the layer has already been
// frozen (programmer error: a frozen layer must never be mutated, I4).
func (l *MutableLayer) Put(key types.StateKey, entry types.Entry) {
	if l.frozen {
		panic("state: write to a frozen layer")
	}
	l.rows[key.Canonical()] = row{key: key, entry: entry}
	l.dirty = true
}

// Dirty reports whether any entry has been written since creation.
func (l *MutableLayer) Dirty() bool {
	return l.dirty
}

// Freeze converts the layer into an immutable, sorted snapshot. The
// MutableLayer itself is marked frozen; further Put calls on it panic.
func (l *MutableLayer) Freeze() *FrozenLayer {
	if l.frozen {
		panic("state: layer already frozen")
	}
	l.frozen = true

	rows := make([]row, 0, len(l.rows))
	for _, r := range l.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key.Less(rows[j].key) })

	byKey := make(map[string]types.Entry, len(rows))
	keys := make([]types.StateKey, len(rows))
	for i, r := range rows {
		byKey[r.key.Canonical()] = r.entry
		keys[i] = r.key
	}
	return &FrozenLayer{keys: keys, byKey: byKey}
}

// Snapshot returns a point-in-time, read-only copy of the layer's
// current rows without freezing the layer itself: unlike Freeze, the
// original layer still accepts further writes afterward. Used by
// Store.Fork so a chunk forked mid-block can see every earlier chunk's
// already-merged writes even though the global mutable layer won't be
// frozen until the whole block finishes.
func (l *MutableLayer) Snapshot() *FrozenLayer {
	rows := make([]row, 0, len(l.rows))
	for _, r := range l.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].key.Less(rows[j].key) })

	byKey := make(map[string]types.Entry, len(rows))
	keys := make([]types.StateKey, len(rows))
	for i, r := range rows {
		byKey[r.key.Canonical()] = r.entry
		keys[i] = r.key
	}
	return &FrozenLayer{keys: keys, byKey: byKey}
}

// FrozenLayer is an immutable committed layer. Once built it is never
// mutated (I4); it may be read concurrently from many goroutines.
type FrozenLayer struct {
	keys  []types.StateKey
	byKey map[string]types.Entry
}

// Get returns the layer's value for key, if any.
func (f *FrozenLayer) Get(key types.StateKey) (types.Entry, bool) {
	e, ok := f.byKey[key.Canonical()]
	return e, ok
}

// Keys returns the layer's keys in sorted order, as fixed at Freeze time.
func (f *FrozenLayer) Keys() []types.StateKey {
	return f.keys
}

// Len reports how many entries the layer holds.
func (f *FrozenLayer) Len() int {
	return len(f.keys)
}
