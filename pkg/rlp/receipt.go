package rlp

import (
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"golang.org/x/crypto/sha3"
)

// EncodeLegacyTransaction renders a legacy transaction envelope
// (rlp([nonce, gasPrice, gasLimit, to, value, data, v, r, s])), the
// inverse of decodeLegacy, used by the RLP round-trip test scenario.
func EncodeLegacyTransaction(nonce uint64, gasPrice, gasLimit uint64, to types.Address, deployment bool, value uint64, data []byte, v uint64, r, s []byte) []byte {
	toField := BytesValue(to[:])
	if deployment {
		toField = BytesValue(nil)
	}
	list := ListValue(
		Uint64Value(nonce),
		Uint64Value(gasPrice),
		Uint64Value(gasLimit),
		toField,
		Uint64Value(value),
		BytesValue(data),
		Uint64Value(v),
		BytesValue(r),
		BytesValue(s),
	)
	return Encode(list)
}

// HashReceipt computes Keccak256 over the RLP encoding of
// (status, gasUsed, output, logs[], contractAddress), per §6.
func HashReceipt(r types.Receipt) [32]byte {
	logs := make([]Value, len(r.Logs))
	for i, l := range r.Logs {
		topics := make([]Value, len(l.Topics))
		for j, t := range l.Topics {
			topics[j] = BytesValue(t[:])
		}
		logs[i] = ListValue(BytesValue(l.Address[:]), ListValue(topics...), BytesValue(l.Data))
	}
	encoded := Encode(ListValue(
		Uint64Value(uint64(r.Status)),
		Uint64Value(r.GasUsed),
		BytesValue(r.Output),
		ListValue(logs...),
		BytesValue(r.ContractAddress[:]),
	))

	hash := sha3.NewLegacyKeccak256()
	hash.Write(encoded)
	var out [32]byte
	copy(out[:], hash.Sum(nil))
	return out
}
