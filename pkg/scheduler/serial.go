// Package scheduler drives a block's transactions through the executor,
// either strictly in order (component C8) or through the speculative
// chunked pipeline (component C9, spec.md §4.9).
package scheduler

import (
	"context"
	"fmt"

	"github.com/fiscobcos/tx-scheduler/pkg/executor"
	"github.com/fiscobcos/tx-scheduler/pkg/rollback"
	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// RunSerial executes txs in submission order against base through a
// single rollback log shared across all of them: a fresh savepoint per
// transaction, not a fresh log, so a reverted transaction never unwinds
// one that already committed ahead of it. The caller owns base's mutable
// layer lifecycle; this is also exactly the loop each parallel chunk runs
// internally over its own forked store (C9's Execute stage).
func RunSerial(ctx context.Context, exec *executor.Executor, header executor.BlockHeader, base state.Interface, txs []types.Transaction, startContextID int) ([]types.Receipt, error) {
	txLog := rollback.New(base)
	receipts := make([]types.Receipt, 0, len(txs))
	for i, tx := range txs {
		receipt, err := exec.Execute(ctx, header, txLog, startContextID+i, tx)
		if err != nil {
			return nil, fmt.Errorf("scheduler: transaction %d failed: %w", startContextID+i, err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// ExecuteBlockSerial is the reference scheduler (C8): push a fresh
// mutable layer, run every transaction through it in order via RunSerial,
// then freeze. No speculation, no chunking; it is the ground truth the
// parallel scheduler's results must match.
func ExecuteBlockSerial(ctx context.Context, exec *executor.Executor, header executor.BlockHeader, store *state.Store, txs []types.Transaction) ([]types.Receipt, error) {
	if err := store.PushMutable(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	receipts, err := RunSerial(ctx, exec, header, store, txs, 0)
	if err != nil {
		return nil, err
	}
	if _, err := store.PopMutable(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return receipts, nil
}
