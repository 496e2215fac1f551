/*
Package types defines the core data structures shared across the
transaction execution core: the state model (keys, entries, table
metadata), the transaction envelope, and the receipt produced by
executing one.

# Architecture

The types package is the foundation everything else builds on. It
defines:

  - State identity and values (StateKey, Entry, EntryStatus)
  - Table schema (TableInfo, per-table authorization)
  - Accounts and addresses (Address)
  - The transaction envelope (Transaction, Signature, TxFlag)
  - Execution outcomes (Receipt, ReceiptStatus, LogRecord)

All types are designed to be:
  - Serializable (JSON for the KV backend, RLP for hashing)
  - Immutable where it matters (Entry is copy-on-construct)
  - Comparable by value except where a []byte field forces a Canonical
    string form instead (StateKey)

# Core Types

State:
  - StateKey: (table, row key) identity of one stored value
  - Entry: present-with-fields or a deleted tombstone, never both
  - TableInfo: a table's key field, value fields, and writer allowlist

Transactions:
  - Transaction: sender, recipient, input payload, gas bounds, optional
    legacy or EIP-1559 fee fields, and flags
  - TxFlag: FlagUsesABICodec, FlagParallelEligible
  - Signature: the (r, s, v) triple; verification is an external
    collaborator, this type only carries the bytes

Receipts:
  - Receipt: the deterministic outcome of one transaction
  - ReceiptStatus: Success, Revert, Unauthorized, InvalidInput,
    CallUndefinedFunction, OutOfGas
  - LogRecord: one EVM-style emitted log

# Usage

Building a transfer call against a precompiled contract:

	tx := types.Transaction{
		Hash:      txHash,
		Sender:    sender,
		Recipient: precompiled.DagTransferAddress,
		Input:     payload,
		GasLimit:  3_000_000,
		Flags:     types.FlagParallelEligible,
	}

Reading a receipt's outcome:

	if receipt.Status != types.StatusSuccess {
		log.Printf("tx %x failed: status %d", tx.Hash, receipt.Status)
	}

# Map keys

StateKey embeds a []byte (RowKey), so it cannot be used directly as a Go
map key. Every StateKey-keyed map in this codebase keys on
StateKey.Canonical() and stores the original StateKey alongside the
value it indexes.

# Integration Points

This package is imported by every other package in the module:

  - pkg/state: StateKey/Entry are the unit of storage at every layer
  - pkg/kv: persists Entry values keyed by StateKey
  - pkg/rollback, pkg/rwset: operate on StateKey/Entry through
    state.Interface
  - pkg/executor: consumes Transaction, produces Receipt
  - pkg/precompiled: reads/writes TableInfo and table rows
  - pkg/scheduler: batches and sequences Transaction values
  - pkg/rlp: encodes Transaction and Receipt for hashing

# Thread Safety

Values in this package carry no internal synchronization. Entry and
TableInfo are read-safe once constructed; callers that mutate a shared
TableInfo (AppendColumn) must synchronize access themselves.
pkg/precompiled's table DDL handlers never share one: each call decodes
its own TableInfo from the meta row.
*/
package types
