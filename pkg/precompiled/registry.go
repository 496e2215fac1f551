// Package precompiled implements the fixed-address built-in contracts
// dispatched during transaction execution (spec.md §4.6, component C6):
// system configuration, table DDL, row CRUD, account status, per-table
// authorization, and a balance-transfer contract used as a deterministic
// stand-in for the opaque VM in tests.
package precompiled

import (
	"context"
	"encoding/binary"

	"github.com/fiscobcos/tx-scheduler/pkg/config"
	"github.com/fiscobcos/tx-scheduler/pkg/metrics"
	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"golang.org/x/crypto/sha3"
)

// Context is the call context a handler runs under: the transaction's
// sender, the current block number, the shared configuration, and the
// state the handler reads and writes through.
type Context struct {
	Ctx         context.Context
	State       state.Interface
	Sender      types.Address
	BlockNumber uint64
	Config      config.GlobalConfig
}

// Ok is a successful call result.
type Ok struct {
	Output []byte
	Gas    uint64
}

// Revert is a handler-level failure: the call is rejected but the block
// continues; the executor maps this onto a failed receipt.
type Revert struct {
	Code    int
	Message string
}

// Fatal marks an error that is not local to this call (storage fault);
// the executor propagates it and aborts the block.
type Fatal struct {
	Err error
}

// Result is the sum type every Handler returns: exactly one of Ok,
// Revert, or Fatal is set.
type Result struct {
	Ok     *Ok
	Revert *Revert
	Fatal  *Fatal
}

func ResultOk(output []byte, gas uint64) Result {
	return Result{Ok: &Ok{Output: output, Gas: gas}}
}

func ResultRevert(code int, message string) Result {
	return Result{Revert: &Revert{Code: code, Message: message}}
}

func ResultFatal(err error) Result {
	return Result{Fatal: &Fatal{Err: err}}
}

// Handler services one precompiled call: the 4-byte selector plus
// ABI-style encoded payload has already been identified as belonging to
// this address; payload is everything after the selector.
type Handler func(ctx Context, selector [4]byte, payload []byte) Result

// Registry maps a fixed recipient address to its handler.
type Registry struct {
	handlers map[types.Address]Handler
	names    map[types.Address]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[types.Address]Handler),
		names:    make(map[types.Address]string),
	}
}

// Register binds a handler to a fixed address, recording a name for
// logging.
func (r *Registry) Register(addr types.Address, name string, h Handler) {
	r.handlers[addr] = h
	r.names[addr] = name
}

// Lookup reports whether addr is a recognized precompiled contract.
func (r *Registry) Lookup(addr types.Address) (Handler, bool) {
	h, ok := r.handlers[addr]
	return h, ok
}

// Name returns the registered name for addr, for logging.
func (r *Registry) Name(addr types.Address) string {
	return r.names[addr]
}

// Dispatch invokes the handler registered for recipient with the call
// payload split into its 4-byte selector and remaining arguments.
// Unknown selectors within a known precompiled still reach the handler;
// an unrecognized recipient address reverts with
// CodeCallUndefinedFunction (the executor checks Lookup first, so it only
// dispatches to registered addresses).
func (r *Registry) Dispatch(ctx Context, recipient types.Address, payload []byte) Result {
	h, ok := r.handlers[recipient]
	if !ok {
		return ResultRevert(CodeCallUndefinedFunction, "call undefined function")
	}
	var selector [4]byte
	var args []byte
	if len(payload) >= 4 {
		copy(selector[:], payload[:4])
		args = payload[4:]
	} else {
		args = payload
	}
	result := h(ctx, selector, args)
	metrics.PrecompiledCallsTotal.WithLabelValues(r.names[recipient], dispatchOutcome(result)).Inc()
	return result
}

func dispatchOutcome(r Result) string {
	switch {
	case r.Fatal != nil:
		return "fatal"
	case r.Revert != nil:
		return "revert"
	default:
		return "ok"
	}
}

// Selector computes the 4-byte dispatch selector for a canonical
// signature such as "setValueByKey(string,string)", matching
// original_source/bcos-executor/src/precompiled/SystemConfigPrecompiled.cpp's
// getFuncSelector: the first four bytes of the Keccak256 hash.
func Selector(signature string) [4]byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(signature))
	sum := hash.Sum(nil)
	var sel [4]byte
	copy(sel[:], sum[:4])
	return sel
}

// Known result codes, matching the original implementation's
// CODE_* constants used across the precompiled family.
const (
	CodeSuccess               = 0
	CodeCallUndefinedFunction = -1
	CodeInvalidConfiguration  = -50
	CodeTableExists           = -51
	CodeTableNotExists        = -52
	CodeNoAuthorized          = -53
	CodeInvalidName           = -54
	CodeInsufficientBalance   = -55
)

// encodeUint64 renders a uint64 as big-endian bytes, the field encoding
// this package's handlers use for numeric values (gas, balances, block
// numbers) stored alongside string fields in Entry.Fields.
func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
