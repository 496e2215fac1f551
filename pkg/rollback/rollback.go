// Package rollback implements the savepoint/undo journal (spec.md §4.4,
// component C4), grounded on
// original_source/transaction-executor/bcos-transaction-executor/RollbackableStorage.h's
// Rollbackable<Storage>: every write first reads through to the wrapped
// store to capture the prior value, then appends a journal record before
// applying. Rollback replays the journal in reverse.
package rollback

import (
	"context"
	"fmt"

	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// record is one journal entry: the key written or removed, and its prior
// value (absent if the key did not previously exist).
type record struct {
	key     types.StateKey
	priorOK bool
	prior   types.Entry
}

// Savepoint denotes the size of the journal at the moment it was taken.
type Savepoint int64

// Log wraps any state.Interface with a single-threaded undo journal. One
// Log is owned by exactly one transaction executor invocation; it is
// never shared across goroutines.
type Log struct {
	wrapped state.Interface
	records []record
}

// New wraps the given store in a rollback log.
func New(wrapped state.Interface) *Log {
	return &Log{wrapped: wrapped}
}

// Current returns the journal's current length, usable as a Savepoint.
func (l *Log) Current() Savepoint {
	return Savepoint(len(l.records))
}

// Savepoint is an alias of Current, matching spec.md's savepoint() naming.
func (l *Log) Savepoint() Savepoint {
	return l.Current()
}

// Read passes through to the wrapped store; reads are not journaled.
func (l *Log) Read(ctx context.Context, key types.StateKey) (types.Entry, bool, error) {
	return l.wrapped.Read(ctx, key)
}

// Scan passes through to the wrapped store; enumerating a table is not
// itself journaled (only the writes a caller issues against the keys it
// yields are).
func (l *Log) Scan(ctx context.Context, table string) ([]types.StateKey, []types.Entry, error) {
	return l.wrapped.Scan(ctx, table)
}

// Write captures the prior value, journals it, then applies the write.
func (l *Log) Write(ctx context.Context, key types.StateKey, entry types.Entry) error {
	prior, ok, err := l.wrapped.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("rollback: pre-write read failed: %w", err)
	}
	l.records = append(l.records, record{key: key, priorOK: ok, prior: prior})
	return l.wrapped.Write(ctx, key, entry)
}

// Remove captures the prior value, journals it, then removes the key.
func (l *Log) Remove(ctx context.Context, key types.StateKey) error {
	prior, ok, err := l.wrapped.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("rollback: pre-remove read failed: %w", err)
	}
	l.records = append(l.records, record{key: key, priorOK: ok, prior: prior})
	return l.wrapped.Remove(ctx, key)
}

// Rollback replays the journal suffix back to sp in reverse, restoring
// each key's exact pre-write state (I2): present keys are written back,
// absent keys are removed.
func (l *Log) Rollback(ctx context.Context, sp Savepoint) error {
	for idx := Savepoint(len(l.records)); idx > sp; idx-- {
		rec := l.records[idx-1]
		var err error
		if rec.priorOK {
			err = l.wrapped.Write(ctx, rec.key, rec.prior)
		} else {
			err = l.wrapped.Remove(ctx, rec.key)
		}
		if err != nil {
			return fmt.Errorf("rollback: failed to restore %s: %w", rec.key, err)
		}
		l.records = l.records[:idx-1]
	}
	return nil
}
