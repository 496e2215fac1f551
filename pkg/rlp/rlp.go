// Package rlp implements Recursive Length Prefix encoding, the wire
// format transactions are serialized with (spec.md §6). No RLP library is
// wired from any example's go.mod (none of the retrieved repos imports
// one; see DESIGN.md), so this is built on the standard library alone
// (fmt, math/big).
//
// The value model mirrors the one go-ethereum's rlp package exercises:
// a value is either a byte string or a list of values. Callers build
// values explicitly with BytesValue, Uint64Value, BigIntValue and
// ListValue; Go structs and slices are not encoded by reflection.
package rlp

import (
	"fmt"
	"math/big"
)

// Value is the generic RLP data model: exactly one of Bytes or List is
// set. isListTagged distinguishes an explicitly-empty list from an
// explicitly-empty byte string, since both otherwise have nil Bytes and
// nil List.
type Value struct {
	Bytes        []byte
	List         []Value
	isListTagged bool
}

// BytesValue wraps a byte string as an RLP value.
func BytesValue(b []byte) Value { return Value{Bytes: b} }

// Uint64Value encodes v as its minimal big-endian byte string, per RLP's
// canonical integer encoding (no leading zero bytes, zero encodes empty).
func Uint64Value(v uint64) Value {
	if v == 0 {
		return Value{Bytes: nil}
	}
	b := big.NewInt(0).SetUint64(v).Bytes()
	return Value{Bytes: b}
}

// BigIntValue encodes an arbitrary-precision non-negative integer.
func BigIntValue(v *big.Int) Value {
	if v == nil || v.Sign() == 0 {
		return Value{Bytes: nil}
	}
	return Value{Bytes: v.Bytes()}
}

// ListValue wraps a sequence of values as an RLP list.
func ListValue(items ...Value) Value { return Value{List: items, isListTagged: true} }

// IsList reports whether v is a list rather than a byte string.
func (v Value) IsList() bool { return v.isListTagged }

// EmptyList is the canonical empty RLP list (used for empty access lists,
// empty log arrays, etc).
func EmptyList() Value {
	return Value{List: []Value{}, isListTagged: true}
}

// Encode renders a Value to its RLP byte representation.
func Encode(v Value) []byte {
	if v.isListTagged {
		var payload []byte
		for _, item := range v.List {
			payload = append(payload, Encode(item)...)
		}
		return append(encodeListHeader(len(payload)), payload...)
	}
	return encodeBytes(v.Bytes)
}

func encodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	header := encodeHeader(0x80, len(b))
	return append(header, b...)
}

func encodeListHeader(n int) []byte {
	return encodeHeader(0xc0, n)
}

func encodeHeader(base byte, n int) []byte {
	if n < 56 {
		return []byte{base + byte(n)}
	}
	lenBytes := minimalBigEndian(uint64(n))
	return append([]byte{base + 55 + byte(len(lenBytes))}, lenBytes...)
}

func minimalBigEndian(n uint64) []byte {
	if n == 0 {
		return []byte{0}
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte(n)}, b...)
		n >>= 8
	}
	return b
}

// Decode parses data as a single RLP value, returning the value and the
// number of bytes consumed.
func Decode(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Value{}, 0, fmt.Errorf("rlp: empty input")
	}
	prefix := data[0]
	switch {
	case prefix < 0x80:
		return Value{Bytes: data[:1]}, 1, nil
	case prefix < 0xb8:
		n := int(prefix - 0x80)
		if len(data) < 1+n {
			return Value{}, 0, fmt.Errorf("rlp: short byte string")
		}
		return Value{Bytes: append([]byte(nil), data[1:1+n]...)}, 1 + n, nil
	case prefix < 0xc0:
		lenOfLen := int(prefix - 0xb7)
		if len(data) < 1+lenOfLen {
			return Value{}, 0, fmt.Errorf("rlp: short byte string length")
		}
		n := int(bigEndianToUint64(data[1 : 1+lenOfLen]))
		start := 1 + lenOfLen
		if len(data) < start+n {
			return Value{}, 0, fmt.Errorf("rlp: short byte string body")
		}
		return Value{Bytes: append([]byte(nil), data[start:start+n]...)}, start + n, nil
	case prefix < 0xf8:
		n := int(prefix - 0xc0)
		if len(data) < 1+n {
			return Value{}, 0, fmt.Errorf("rlp: short list")
		}
		items, err := decodeList(data[1 : 1+n])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{List: items, isListTagged: true}, 1 + n, nil
	default:
		lenOfLen := int(prefix - 0xf7)
		if len(data) < 1+lenOfLen {
			return Value{}, 0, fmt.Errorf("rlp: short list length")
		}
		n := int(bigEndianToUint64(data[1 : 1+lenOfLen]))
		start := 1 + lenOfLen
		if len(data) < start+n {
			return Value{}, 0, fmt.Errorf("rlp: short list body")
		}
		items, err := decodeList(data[start : start+n])
		if err != nil {
			return Value{}, 0, err
		}
		return Value{List: items, isListTagged: true}, start + n, nil
	}
}

func decodeList(data []byte) ([]Value, error) {
	var items []Value
	offset := 0
	for offset < len(data) {
		v, n, err := Decode(data[offset:])
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		offset += n
	}
	return items, nil
}

func bigEndianToUint64(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n
}

// Uint64 decodes a byte-string Value as an unsigned integer.
func (v Value) Uint64() uint64 {
	return bigEndianToUint64(v.Bytes)
}

// BigInt decodes a byte-string Value as an arbitrary-precision integer.
func (v Value) BigInt() *big.Int {
	return big.NewInt(0).SetBytes(v.Bytes)
}
