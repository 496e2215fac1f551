// Package txerror enumerates the error taxonomy of the transaction
// execution core. Transaction-level failures (revert, unauthorized write,
// invalid input) never stop a block; they are mapped to a failed receipt.
// Storage and codec faults are not local to a transaction and must
// propagate to the caller.
package txerror

import "errors"

var (
	// ErrRevert marks a VM or precompiled-handler revert. The executor
	// rolls back to the transaction's savepoint and emits a failed
	// receipt; the block continues.
	ErrRevert = errors.New("transaction reverted")

	// ErrUnauthorized marks a table write whose origin is not in the
	// table's authorized-writer set. State is left unmodified.
	ErrUnauthorized = errors.New("not authorized")

	// ErrInvalidInput marks malformed ABI, an unknown precompiled
	// selector, or an out-of-range configuration value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCallUndefinedFunction marks a precompiled dispatch with no
	// matching selector.
	ErrCallUndefinedFunction = errors.New("call undefined function")

	// ErrStorageFault marks a KV backend failure (I/O, corruption). It
	// aborts the whole block; the mutable layer is discarded and the
	// caller receives the error.
	ErrStorageFault = errors.New("storage fault")

	// ErrCodecFault marks an RLP decode failure. The transaction is not
	// admitted.
	ErrCodecFault = errors.New("codec fault")
)

// Wrap attaches one of the sentinel errors above to a lower-level cause
// so callers can both errors.Is(err, txerror.ErrX) and read the detail.
func Wrap(sentinel error, detail string) error {
	if detail == "" {
		return sentinel
	}
	return &wrapped{sentinel: sentinel, detail: detail}
}

type wrapped struct {
	sentinel error
	detail   string
}

func (w *wrapped) Error() string { return w.sentinel.Error() + ": " + w.detail }
func (w *wrapped) Unwrap() error { return w.sentinel }
