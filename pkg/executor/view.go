package executor

import (
	"context"
	"fmt"

	"github.com/fiscobcos/tx-scheduler/pkg/precompiled"
	"github.com/fiscobcos/tx-scheduler/pkg/rollback"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// stateView adapts a rollback.Log to the StateView a VMCallback sees.
// Nested calls (CALL/DELEGATECALL analogues) take their own savepoint
// through this same view; a revert three calls deep unwinds only that
// call's writes because Rollback targets the caller-supplied savepoint,
// not the transaction's outermost one.
type stateView struct {
	ctx context.Context
	log *rollback.Log
}

func (v *stateView) Get(ctx context.Context, key types.StateKey) (types.Entry, bool, error) {
	return v.log.Read(ctx, key)
}

func (v *stateView) Put(ctx context.Context, key types.StateKey, entry types.Entry) error {
	return v.log.Write(ctx, key, entry)
}

func (v *stateView) Remove(ctx context.Context, key types.StateKey) error {
	return v.log.Remove(ctx, key)
}

func (v *stateView) OpenTable(ctx context.Context, name string) (TableHandle, error) {
	metaKey := types.StateKey{Table: precompiled.MetaTable, RowKey: []byte(name)}
	_, exists, err := v.log.Read(ctx, metaKey)
	if err != nil {
		return TableHandle{}, fmt.Errorf("executor: open table failed: %w", err)
	}
	if !exists {
		return TableHandle{}, fmt.Errorf("executor: table %q does not exist", name)
	}
	return TableHandle{Name: name}, nil
}

func (v *stateView) Savepoint() int64 {
	return int64(v.log.Savepoint())
}

func (v *stateView) Rollback(ctx context.Context, sp int64) error {
	return v.log.Rollback(ctx, rollback.Savepoint(sp))
}
