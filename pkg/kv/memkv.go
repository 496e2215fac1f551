package kv

import (
	"context"
	"sort"
	"sync"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// memRow pairs a StateKey with its entry; MemBackend keys its map on
// StateKey.Canonical() since RowKey's []byte makes StateKey itself
// unusable as a map key.
type memRow struct {
	key   types.StateKey
	entry types.Entry
}

// MemBackend is an in-memory ordered map, used by tests and the
// benchmark CLI in place of the durable bbolt backend. It satisfies the
// same Backend contract, grounded on the sorted in-memory map approach of
// Jekaa-go-mvcc-map's mvcc.Map.
type MemBackend struct {
	mu   sync.RWMutex
	rows map[string]memRow
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{rows: make(map[string]memRow)}
}

func (m *MemBackend) Close() error { return nil }

func (m *MemBackend) ReadOne(_ context.Context, key types.StateKey) (OptEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[key.Canonical()]
	return OptEntry{Entry: r.entry, Found: ok}, nil
}

func (m *MemBackend) ReadSome(_ context.Context, keys []types.StateKey) ([]OptEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OptEntry, len(keys))
	for i, key := range keys {
		r, ok := m.rows[key.Canonical()]
		out[i] = OptEntry{Entry: r.entry, Found: ok}
	}
	return out, nil
}

func (m *MemBackend) WriteSome(_ context.Context, keys []types.StateKey, entries []types.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, key := range keys {
		m.rows[key.Canonical()] = memRow{key: key, entry: entries[i]}
	}
	return nil
}

func (m *MemBackend) RemoveSome(_ context.Context, keys []types.StateKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.rows, key.Canonical())
	}
	return nil
}

// allRows enumerates every row this backend holds, for mergeFSM's Raft
// snapshot.
func (m *MemBackend) allRows(_ context.Context) ([]snapshotRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := make([]snapshotRow, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, snapshotRow{Key: r.key, Entry: r.entry})
	}
	return rows, nil
}

func (m *MemBackend) Seek(_ context.Context, start types.StateKey) (Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []memRow
	for _, r := range m.rows {
		if r.key.Table == start.Table && !r.key.Less(start) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].key.Less(matched[j].key) })

	keys := make([]types.StateKey, len(matched))
	entries := make([]types.Entry, len(matched))
	for i, r := range matched {
		keys[i] = r.key
		entries[i] = r.entry
	}
	return &memCursor{keys: keys, entries: entries}, nil
}

type memCursor struct {
	keys    []types.StateKey
	entries []types.Entry
	pos     int
}

func (c *memCursor) Next(_ context.Context) (types.StateKey, types.Entry, bool, error) {
	if c.pos >= len(c.keys) {
		return types.StateKey{}, types.Entry{}, false, nil
	}
	key, entry := c.keys[c.pos], c.entries[c.pos]
	c.pos++
	return key, entry, true, nil
}

func (c *memCursor) Close() error { return nil }
