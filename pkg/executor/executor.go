// Package executor drives one transaction through precompiled dispatch
// or the opaque VM callback, assembling its receipt (spec.md §4.7,
// component C7).
package executor

import (
	"context"
	"fmt"

	"github.com/fiscobcos/tx-scheduler/pkg/config"
	"github.com/fiscobcos/tx-scheduler/pkg/log"
	"github.com/fiscobcos/tx-scheduler/pkg/metrics"
	"github.com/fiscobcos/tx-scheduler/pkg/precompiled"
	"github.com/fiscobcos/tx-scheduler/pkg/rollback"
	"github.com/fiscobcos/tx-scheduler/pkg/txerror"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/rs/zerolog"
)

func statusLabel(s types.ReceiptStatus) string {
	switch s {
	case types.StatusSuccess:
		return "success"
	case types.StatusRevert:
		return "revert"
	case types.StatusUnauthorized:
		return "unauthorized"
	case types.StatusCallUndefinedFunction:
		return "call_undefined_function"
	case types.StatusOutOfGas:
		return "out_of_gas"
	default:
		return "invalid_input"
	}
}

// BlockHeader is the subset of block metadata the executor and its
// precompiled calls need. Block assembly itself is an external
// collaborator (spec.md §1 Non-goals).
type BlockHeader struct {
	Number uint64
}

// TableHandle is the result of StateView.OpenTable: proof that a table
// exists, carrying just enough to address rows within it.
type TableHandle struct {
	Name string
}

// CallContext is one VM or precompiled invocation: the sender, the
// recipient, and the call payload.
type CallContext struct {
	Sender    types.Address
	Recipient types.Address
	Input     []byte
	GasLimit  uint64
}

// StateView is the world a VMCallback sees: reads and writes through the
// state interface, plus nested-call savepoint control (§4.7's "nested
// calls take a new savepoint before handing control back to the VM").
type StateView interface {
	Get(ctx context.Context, key types.StateKey) (types.Entry, bool, error)
	Put(ctx context.Context, key types.StateKey, entry types.Entry) error
	Remove(ctx context.Context, key types.StateKey) error
	OpenTable(ctx context.Context, name string) (TableHandle, error)
	Savepoint() int64
	Rollback(ctx context.Context, sp int64) error
}

// VMResult is the opaque VM callback's report, per §6: status, gas used,
// output bytes, logs, and an optional new contract address for
// deployments. Opcode semantics themselves are out of scope (§1).
type VMResult struct {
	Reverted        bool
	Output          []byte
	GasUsed         uint64
	Logs            []types.LogRecord
	ContractAddress types.Address
}

// VMCallback is the external, stated-interface-only collaborator that
// executes non-precompiled recipients.
type VMCallback func(ctx context.Context, header BlockHeader, call CallContext, view StateView) (VMResult, error)

// Executor drives one transaction at a time. It is safe to instantiate
// concurrently over disjoint state interfaces (different chunks), but a
// single instance is strictly single-threaded.
type Executor struct {
	registry *precompiled.Registry
	config   config.GlobalConfig
	vm       VMCallback
	logger   zerolog.Logger
}

// New builds an Executor bound to a precompiled registry, configuration,
// and the opaque VM callback for ordinary contract calls.
func New(registry *precompiled.Registry, cfg config.GlobalConfig, vm VMCallback) *Executor {
	return &Executor{registry: registry, config: cfg, vm: vm, logger: log.WithComponent("executor")}
}

// Execute runs one transaction against txLog, a rollback.Log sitting on
// top of a read/write-set tracker on top of the multi-layer store (§4.7's
// "normally"-composed state interface), tagging log output with
// contextID (the transaction's index within its chunk).
func (e *Executor) Execute(ctx context.Context, header BlockHeader, txLog *rollback.Log, contextID int, tx types.Transaction) (types.Receipt, error) {
	logger := log.WithTx(log.WithBlock(e.logger, header.Number), tx.Hash).With().Int("context_id", contextID).Logger()
	sp := txLog.Savepoint()
	timer := metrics.NewTimer()

	var receipt types.Receipt
	var err error
	if !tx.IsDeployment() {
		if _, ok := e.registry.Lookup(tx.Recipient); ok {
			receipt, err = e.runPrecompiled(ctx, header, txLog, sp, tx, logger)
		} else {
			receipt, err = e.runVM(ctx, header, txLog, sp, tx, logger)
		}
	} else {
		receipt, err = e.runVM(ctx, header, txLog, sp, tx, logger)
	}

	timer.ObserveDuration(metrics.TransactionExecuteDuration)
	if err == nil {
		metrics.TransactionsExecutedTotal.WithLabelValues(statusLabel(receipt.Status)).Inc()
	}
	return receipt, err
}

func (e *Executor) runPrecompiled(ctx context.Context, header BlockHeader, txLog *rollback.Log, sp rollback.Savepoint, tx types.Transaction, logger zerolog.Logger) (types.Receipt, error) {
	pctx := precompiled.Context{
		Ctx:         ctx,
		State:       txLog,
		Sender:      tx.Sender,
		BlockNumber: header.Number,
		Config:      e.config,
	}
	result := e.registry.Dispatch(pctx, tx.Recipient, tx.Input)

	switch {
	case result.Fatal != nil:
		return types.Receipt{}, txerror.Wrap(txerror.ErrStorageFault, fmt.Sprintf("precompiled call: %v", result.Fatal.Err))
	case result.Revert != nil:
		logger.Debug().Str("message", result.Revert.Message).Msg("precompiled call reverted")
		if err := txLog.Rollback(ctx, sp); err != nil {
			return types.Receipt{}, txerror.Wrap(txerror.ErrStorageFault, fmt.Sprintf("rollback: %v", err))
		}
		metrics.RollbacksTotal.Inc()
		return types.Receipt{Status: statusFromRevertCode(result.Revert.Code)}, nil
	default:
		return types.Receipt{Status: types.StatusSuccess, GasUsed: result.Ok.Gas, Output: result.Ok.Output}, nil
	}
}

func (e *Executor) runVM(ctx context.Context, header BlockHeader, txLog *rollback.Log, sp rollback.Savepoint, tx types.Transaction, logger zerolog.Logger) (types.Receipt, error) {
	view := &stateView{ctx: ctx, log: txLog}
	call := CallContext{Sender: tx.Sender, Recipient: tx.Recipient, Input: tx.Input, GasLimit: tx.GasLimit}

	result, err := e.vm(ctx, header, call, view)
	if err != nil {
		return types.Receipt{}, txerror.Wrap(txerror.ErrStorageFault, fmt.Sprintf("vm call: %v", err))
	}
	if result.Reverted {
		logger.Debug().Msg("vm call reverted")
		if err := txLog.Rollback(ctx, sp); err != nil {
			return types.Receipt{}, txerror.Wrap(txerror.ErrStorageFault, fmt.Sprintf("rollback: %v", err))
		}
		metrics.RollbacksTotal.Inc()
		return types.Receipt{Status: types.StatusRevert, GasUsed: result.GasUsed, Output: result.Output}, nil
	}
	return types.Receipt{
		Status:          types.StatusSuccess,
		GasUsed:         result.GasUsed,
		Output:          result.Output,
		ContractAddress: result.ContractAddress,
		Logs:            result.Logs,
	}, nil
}

func statusFromRevertCode(code int) types.ReceiptStatus {
	switch code {
	case precompiled.CodeNoAuthorized:
		return types.StatusUnauthorized
	case precompiled.CodeCallUndefinedFunction:
		return types.StatusCallUndefinedFunction
	case precompiled.CodeInsufficientBalance:
		return types.StatusRevert
	default:
		return types.StatusInvalidInput
	}
}
