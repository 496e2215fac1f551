package state

import (
	"context"
	"fmt"
	"sort"

	"github.com/fiscobcos/tx-scheduler/pkg/kv"
	"github.com/fiscobcos/tx-scheduler/pkg/metrics"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// Store is a stack of [mutable?, immutable..., backend]. Reads walk the
// stack top-down; the first Present entry wins and the first Deleted
// entry short-circuits to "absent" (I1). Writes and removes always
// target the top mutable layer (I3, I5).
type Store struct {
	mutable    *MutableLayer
	immutables []*FrozenLayer // most recent first
	backend    kv.Backend
}

// NewStore builds an empty store over a durable backend, with no layers
// pushed yet.
func NewStore(backend kv.Backend) *Store {
	return &Store{backend: backend}
}

// PushMutable adds an empty mutable layer at the top. It fails if one
// already exists.
func (s *Store) PushMutable() error {
	if s.mutable != nil {
		return fmt.Errorf("state: mutable layer already pushed")
	}
	s.mutable = NewMutableLayer()
	return nil
}

// PopMutable freezes and removes the top mutable layer, pushing it onto
// the immutable chain, and returns the frozen snapshot.
func (s *Store) PopMutable() (*FrozenLayer, error) {
	if s.mutable == nil {
		return nil, fmt.Errorf("state: no mutable layer to pop")
	}
	frozen := s.mutable.Freeze()
	s.mutable = nil
	s.immutables = append([]*FrozenLayer{frozen}, s.immutables...)
	metrics.ImmutableLayersTotal.Set(float64(len(s.immutables)))
	return frozen, nil
}

// Read walks the stack top-down per I1.
func (s *Store) Read(ctx context.Context, key types.StateKey) (types.Entry, bool, error) {
	if s.mutable != nil {
		if e, ok := s.mutable.Get(key); ok {
			return e, !e.IsDeleted(), nil
		}
	}
	for _, layer := range s.immutables {
		if e, ok := layer.Get(key); ok {
			return e, !e.IsDeleted(), nil
		}
	}
	opt, err := s.backend.ReadOne(ctx, key)
	if err != nil {
		return types.Entry{}, false, fmt.Errorf("state: backend read failed: %w", err)
	}
	if !opt.Found || opt.Entry.IsDeleted() {
		return types.Entry{}, false, nil
	}
	return opt.Entry, true, nil
}

// ReadSome fans reads out but preserves the caller's key order.
func (s *Store) ReadSome(ctx context.Context, keys []types.StateKey) ([]types.Entry, []bool, error) {
	entries := make([]types.Entry, len(keys))
	found := make([]bool, len(keys))
	for i, key := range keys {
		e, ok, err := s.Read(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		entries[i], found[i] = e, ok
	}
	return entries, found, nil
}

// Write targets the mutable layer only; it fails if none exists.
func (s *Store) Write(_ context.Context, key types.StateKey, entry types.Entry) error {
	if s.mutable == nil {
		return fmt.Errorf("state: no mutable layer to write to")
	}
	s.mutable.Put(key, entry)
	return nil
}

// Remove writes a tombstone to the mutable layer only.
func (s *Store) Remove(ctx context.Context, key types.StateKey) error {
	return s.Write(ctx, key, types.DeletedEntry())
}

// MergeDown folds the oldest immutable layer into the backend; tombstones
// become deletes (I3). It is a no-op if there is no immutable layer yet.
func (s *Store) MergeDown(ctx context.Context) error {
	if len(s.immutables) == 0 {
		return nil
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StateLayerMergeDuration)

	oldest := s.immutables[len(s.immutables)-1]
	s.immutables = s.immutables[:len(s.immutables)-1]
	defer func() { metrics.ImmutableLayersTotal.Set(float64(len(s.immutables))) }()

	var putKeys []types.StateKey
	var putEntries []types.Entry
	var delKeys []types.StateKey
	for _, key := range oldest.Keys() {
		entry, _ := oldest.Get(key)
		if entry.IsDeleted() {
			delKeys = append(delKeys, key)
		} else {
			putKeys = append(putKeys, key)
			putEntries = append(putEntries, entry)
		}
	}
	if len(putKeys) > 0 {
		if err := s.backend.WriteSome(ctx, putKeys, putEntries); err != nil {
			return fmt.Errorf("state: merge write failed: %w", err)
		}
	}
	if len(delKeys) > 0 {
		if err := s.backend.RemoveSome(ctx, delKeys); err != nil {
			return fmt.Errorf("state: merge remove failed: %w", err)
		}
	}
	return nil
}

// Scan returns every Present row in table, applying the same top-down,
// first-Present-wins, first-Deleted-short-circuits overlay as Read (I1)
// across the full set of keys known to any layer or the backend. Used by
// the table precompiled's Select; not part of the core C3 contract, which
// only promises point reads.
func (s *Store) Scan(ctx context.Context, table string) ([]types.StateKey, []types.Entry, error) {
	seen := make(map[string]types.StateKey)

	if s.mutable != nil {
		for k := range s.mutable.rows {
			if s.mutable.rows[k].key.Table == table {
				seen[k] = s.mutable.rows[k].key
			}
		}
	}
	for _, layer := range s.immutables {
		for _, k := range layer.Keys() {
			if k.Table == table {
				seen[k.Canonical()] = k
			}
		}
	}

	cursor, err := s.backend.Seek(ctx, types.StateKey{Table: table})
	if err != nil {
		return nil, nil, fmt.Errorf("state: scan seek failed: %w", err)
	}
	defer cursor.Close()
	for {
		key, _, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("state: scan cursor failed: %w", err)
		}
		if !ok || key.Table != table {
			break
		}
		seen[key.Canonical()] = key
	}

	keys := make([]types.StateKey, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var outKeys []types.StateKey
	var outEntries []types.Entry
	for _, k := range keys {
		entry, ok, err := s.Read(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			outKeys = append(outKeys, k)
			outEntries = append(outEntries, entry)
		}
	}
	return outKeys, outEntries, nil
}

// MergeMutableFrom folds another store's mutable layer into this store's
// mutable layer, row by row. Used by the parallel scheduler's merge stage
// to fold a committed chunk's private writes into the global mutable
// layer once that chunk has passed its conflict check.
func (s *Store) MergeMutableFrom(other *Store) error {
	if s.mutable == nil {
		return fmt.Errorf("state: no mutable layer to merge into")
	}
	if other.mutable == nil {
		return nil
	}
	for canon, r := range other.mutable.rows {
		s.mutable.rows[canon] = r
	}
	if other.mutable.dirty {
		s.mutable.dirty = true
	}
	return nil
}

// Fork builds the ephemeral per-chunk store the parallel scheduler needs
// for its Execute stage: the same immutable chain and backend, with a
// fresh private mutable layer already pushed. If a mutable layer is
// currently being built (earlier chunks already merged into it this
// block), its rows are carried forward as a snapshot so the fork sees
// them too, even though it hasn't been frozen yet.
func (s *Store) Fork() *Store {
	immutables := make([]*FrozenLayer, 0, len(s.immutables)+1)
	if s.mutable != nil {
		immutables = append(immutables, s.mutable.Snapshot())
	}
	immutables = append(immutables, s.immutables...)
	fork := &Store{
		mutable:    NewMutableLayer(),
		immutables: immutables,
		backend:    s.backend,
	}
	return fork
}
