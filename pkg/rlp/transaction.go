package rlp

import (
	"fmt"
	"math/big"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// AccessListEntry is one EIP-2930 access-list tuple: an address and the
// storage slots the transaction declares it will touch.
type AccessListEntry struct {
	Address     types.Address
	StorageKeys [][32]byte
}

// DecodedTransaction is the wire-level view of a transaction envelope,
// distinct from types.Transaction in carrying the raw v/r/s and access
// list rather than the domain-level fields the executor consumes.
type DecodedTransaction struct {
	TxType               byte // 0 = legacy, 1/2/3 per EIP-2718
	ChainID              *uint64
	Nonce                uint64
	GasPrice             *big.Int // legacy/type-1
	MaxPriorityFeePerGas *big.Int // type-2/3
	MaxFeePerGas         *big.Int // type-2/3
	GasLimit             uint64
	To                   types.Address
	Deployment           bool
	Value                *big.Int
	Data                 []byte
	AccessList           []AccessListEntry
	MaxFeePerBlobGas     *big.Int   // type-3
	BlobVersionedHashes  [][32]byte // type-3
	YParity              uint64
	R, S                 *big.Int
}

// DecodeTransaction parses a legacy or EIP-2718 typed transaction
// envelope, matching §6's four wire formats.
func DecodeTransaction(data []byte) (*DecodedTransaction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("rlp: empty transaction")
	}
	if data[0] >= 0xc0 {
		return decodeLegacy(data)
	}
	switch data[0] {
	case 0x01:
		return decodeTyped(data[1:], 1)
	case 0x02:
		return decodeTyped(data[1:], 2)
	case 0x03:
		return decodeTyped(data[1:], 3)
	default:
		return nil, fmt.Errorf("rlp: unrecognized transaction type 0x%02x", data[0])
	}
}

func decodeLegacy(data []byte) (*DecodedTransaction, error) {
	v, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("rlp: failed to decode legacy envelope: %w", err)
	}
	if !v.IsList() || len(v.List) != 9 {
		return nil, fmt.Errorf("rlp: legacy transaction expects 9 fields, got %d", len(v.List))
	}
	fields := v.List
	vVal := fields[6].Uint64()

	tx := &DecodedTransaction{
		TxType:     0,
		Nonce:      fields[0].Uint64(),
		GasPrice:   fields[1].BigInt(),
		GasLimit:   fields[2].Uint64(),
		Value:      fields[4].BigInt(),
		Data:       fields[5].Bytes,
		R:          fields[7].BigInt(),
		S:          fields[8].BigInt(),
	}
	setRecipient(tx, fields[3].Bytes)

	switch {
	case vVal == 27 || vVal == 28:
		tx.YParity = vVal - 27
	case vVal >= 35:
		chainID := (vVal - 35) >> 1
		tx.ChainID = &chainID
		tx.YParity = (vVal - 35) % 2
	default:
		return nil, fmt.Errorf("rlp: invalid v %d in signature", vVal)
	}
	return tx, nil
}

func decodeTyped(data []byte, txType byte) (*DecodedTransaction, error) {
	v, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("rlp: failed to decode type-%d envelope: %w", txType, err)
	}
	if !v.IsList() {
		return nil, fmt.Errorf("rlp: expected a list for type-%d envelope", txType)
	}
	fields := v.List

	switch txType {
	case 1:
		return decodeType1(fields)
	case 2:
		return decodeType2(fields)
	case 3:
		return decodeType3(fields)
	default:
		return nil, fmt.Errorf("rlp: unsupported transaction type %d", txType)
	}
}

func decodeType1(fields []Value) (*DecodedTransaction, error) {
	if len(fields) != 11 {
		return nil, fmt.Errorf("rlp: type-1 transaction expects 11 fields, got %d", len(fields))
	}
	chainID := fields[0].Uint64()
	tx := &DecodedTransaction{
		TxType:     1,
		ChainID:    &chainID,
		Nonce:      fields[1].Uint64(),
		GasPrice:   fields[2].BigInt(),
		GasLimit:   fields[3].Uint64(),
		Value:      fields[5].BigInt(),
		Data:       fields[6].Bytes,
		AccessList: decodeAccessList(fields[7]),
		YParity:    fields[8].Uint64(),
		R:          fields[9].BigInt(),
		S:          fields[10].BigInt(),
	}
	setRecipient(tx, fields[4].Bytes)
	if err := checkYParity(tx.YParity); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodeType2(fields []Value) (*DecodedTransaction, error) {
	if len(fields) != 12 {
		return nil, fmt.Errorf("rlp: type-2 transaction expects 12 fields, got %d", len(fields))
	}
	chainID := fields[0].Uint64()
	tx := &DecodedTransaction{
		TxType:               2,
		ChainID:              &chainID,
		Nonce:                fields[1].Uint64(),
		MaxPriorityFeePerGas: fields[2].BigInt(),
		MaxFeePerGas:         fields[3].BigInt(),
		GasLimit:             fields[4].Uint64(),
		Value:                fields[6].BigInt(),
		Data:                 fields[7].Bytes,
		AccessList:           decodeAccessList(fields[8]),
		YParity:              fields[9].Uint64(),
		R:                    fields[10].BigInt(),
		S:                    fields[11].BigInt(),
	}
	setRecipient(tx, fields[5].Bytes)
	if err := checkYParity(tx.YParity); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodeType3(fields []Value) (*DecodedTransaction, error) {
	if len(fields) != 14 {
		return nil, fmt.Errorf("rlp: type-3 transaction expects 14 fields, got %d", len(fields))
	}
	chainID := fields[0].Uint64()
	tx := &DecodedTransaction{
		TxType:               3,
		ChainID:              &chainID,
		Nonce:                fields[1].Uint64(),
		MaxPriorityFeePerGas: fields[2].BigInt(),
		MaxFeePerGas:         fields[3].BigInt(),
		GasLimit:             fields[4].Uint64(),
		Value:                fields[6].BigInt(),
		Data:                 fields[7].Bytes,
		AccessList:           decodeAccessList(fields[8]),
		MaxFeePerBlobGas:     fields[9].BigInt(),
		YParity:              fields[11].Uint64(),
		R:                    fields[12].BigInt(),
		S:                    fields[13].BigInt(),
	}
	setRecipient(tx, fields[5].Bytes)
	for _, h := range fields[10].List {
		var hash [32]byte
		copy(hash[32-len(h.Bytes):], h.Bytes)
		tx.BlobVersionedHashes = append(tx.BlobVersionedHashes, hash)
	}
	if err := checkYParity(tx.YParity); err != nil {
		return nil, err
	}
	return tx, nil
}

// checkYParity rejects a y_parity above 1 in typed transactions, per
// §6 (typed transactions always carry an explicit y_parity bit, so only
// 0 or 1 are valid here; this guards against a caller accidentally
// feeding a legacy-style v value into a typed decode path).
func checkYParity(v uint64) error {
	if v > 1 {
		return fmt.Errorf("rlp: invalid y_parity %d in signature", v)
	}
	return nil
}

func decodeAccessList(v Value) []AccessListEntry {
	var list []AccessListEntry
	for _, entry := range v.List {
		if !entry.IsList() || len(entry.List) != 2 {
			continue
		}
		var addr types.Address
		copy(addr[:], entry.List[0].Bytes)
		al := AccessListEntry{Address: addr}
		for _, k := range entry.List[1].List {
			var slot [32]byte
			copy(slot[32-len(k.Bytes):], k.Bytes)
			al.StorageKeys = append(al.StorageKeys, slot)
		}
		list = append(list, al)
	}
	return list
}

func setRecipient(tx *DecodedTransaction, to []byte) {
	if len(to) == 0 {
		tx.Deployment = true
		return
	}
	copy(tx.To[:], to)
}
