package types

import (
	"bytes"
	"fmt"
)

// StateKey identifies one row in one table. Tables are flat namespaces;
// there is no nesting, and keys are compared byte-exact.
type StateKey struct {
	Table  string
	RowKey []byte
}

// String renders the key for logging.
func (k StateKey) String() string {
	return fmt.Sprintf("%s/%x", k.Table, k.RowKey)
}

// Less orders keys first by table, then by row key, for deterministic
// iteration (layer freeze, KV backend seek).
func (k StateKey) Less(other StateKey) bool {
	if k.Table != other.Table {
		return k.Table < other.Table
	}
	return bytes.Compare(k.RowKey, other.RowKey) < 0
}

// Canonical returns a comparable string form of the key, since RowKey's
// []byte makes StateKey itself unusable as a map key. Callers that need
// StateKey-keyed maps key on Canonical() and store the original StateKey
// alongside the value.
func (k StateKey) Canonical() string {
	return k.Table + "\x00" + string(k.RowKey)
}

// EntryStatus distinguishes a present row from a tombstone.
type EntryStatus int

const (
	StatusNormal EntryStatus = iota
	StatusDeleted
)

// Entry is a value of either Present(fields) or Deleted. Entries are
// immutable once written to an immutable layer.
type Entry struct {
	Status EntryStatus
	Fields map[string][]byte
}

// NewPresentEntry builds a present entry from a field map. The caller's
// map is copied so later mutation of the input cannot corrupt a stored
// entry.
func NewPresentEntry(fields map[string][]byte) Entry {
	cp := make(map[string][]byte, len(fields))
	for k, v := range fields {
		cp[k] = append([]byte(nil), v...)
	}
	return Entry{Status: StatusNormal, Fields: cp}
}

// DeletedEntry is the tombstone value.
func DeletedEntry() Entry {
	return Entry{Status: StatusDeleted}
}

// IsDeleted reports whether this entry is a tombstone.
func (e Entry) IsDeleted() bool {
	return e.Status == StatusDeleted
}

// Field returns a field's value and whether it was set.
func (e Entry) Field(name string) ([]byte, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	if e.IsDeleted() {
		return DeletedEntry()
	}
	return NewPresentEntry(e.Fields)
}

// TableInfo is the metadata for a table: its key field, its ordered value
// fields, and an optional authorized-writer allowlist. Schemas are
// append-only once a table is created: ValueFields may grow but never
// shrink or reorder.
type TableInfo struct {
	Name              string
	KeyField          string
	ValueFields       []string
	AuthorizedWriters map[string]struct{} // empty/nil means unrestricted
}

// HasColumn reports whether name is already a value field.
func (t *TableInfo) HasColumn(name string) bool {
	for _, f := range t.ValueFields {
		if f == name {
			return true
		}
	}
	return false
}

// AppendColumn adds a new value field if it isn't already present.
// Existing rows are not rewritten; reads of the new column on an older
// row observe an empty string (see SPEC_FULL.md for the rationale).
func (t *TableInfo) AppendColumn(name string) error {
	if t.HasColumn(name) {
		return fmt.Errorf("column %q already exists on table %q", name, t.Name)
	}
	t.ValueFields = append(t.ValueFields, name)
	return nil
}

// IsAuthorized reports whether addr may write to the table. An empty
// AuthorizedWriters set means unrestricted.
func (t *TableInfo) IsAuthorized(addr Address) bool {
	if len(t.AuthorizedWriters) == 0 {
		return true
	}
	_, ok := t.AuthorizedWriters[addr.String()]
	return ok
}

// Address is a 20-byte account/contract address.
type Address [20]byte

func (a Address) String() string {
	return fmt.Sprintf("%x", a[:])
}

// IsZero reports whether the address is the empty/deployment address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Signature is an ECDSA-style (r, s, v) signature over a transaction's
// signing hash. Signature verification itself is an external
// collaborator (§1 Non-goals); this type only carries the bytes.
type Signature struct {
	R, S []byte
	V    uint64
}

// TxFlag marks optional transaction attributes.
type TxFlag uint32

const (
	// FlagUsesABICodec marks a transaction whose input/output follow the
	// ABI codec (as opposed to a raw precompiled call payload).
	FlagUsesABICodec TxFlag = 1 << iota
	// FlagParallelEligible marks a transaction the scheduler may place
	// into a speculative chunk. Ineligible transactions (e.g. consensus
	// node list changes) still execute, but the scheduler may choose to
	// isolate them.
	FlagParallelEligible
)

// Transaction is the immutable descriptor of one on-chain call.
type Transaction struct {
	Hash       [32]byte
	Sender     Address
	Recipient  Address // zero value means contract deployment
	Input      []byte
	Nonce      uint64
	BlockLimit uint64
	ChainID    *uint64 // nil for pre-EIP-155 legacy transactions
	GroupID    string
	GasLimit   uint64
	GasPrice   *BigIntPair // legacy/type-1 gas price, nil for dynamic-fee txs
	Tip        *BigIntPair // EIP-1559 max priority fee per gas
	FeeCap     *BigIntPair // EIP-1559 max fee per gas
	Signature  *Signature
	Flags      TxFlag
}

// BigIntPair carries an arbitrary-precision integer as big-endian bytes,
// avoiding a hard dependency on a particular bignum library in this type
// (codec packages convert to/from math/big at their boundary).
type BigIntPair struct {
	Bytes []byte
}

// IsDeployment reports whether this transaction deploys a new contract.
func (t *Transaction) IsDeployment() bool {
	return t.Recipient.IsZero()
}

// HasFlag reports whether the given flag is set.
func (t *Transaction) HasFlag(f TxFlag) bool {
	return t.Flags&f != 0
}

// ReceiptStatus is the deterministic outcome code of one transaction.
type ReceiptStatus int32

const (
	StatusSuccess ReceiptStatus = iota
	StatusRevert
	StatusUnauthorized
	StatusInvalidInput
	StatusCallUndefinedFunction
	StatusOutOfGas
)

// LogRecord is one EVM-style log entry emitted during execution.
type LogRecord struct {
	Address Address
	Topics  [][32]byte
	Data    []byte
}

// Receipt is the deterministic record of one transaction's outcome.
type Receipt struct {
	Status          ReceiptStatus
	GasUsed         uint64
	Output          []byte
	ContractAddress Address // set only for successful deployments
	Logs            []LogRecord
}
