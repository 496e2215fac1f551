package precompiled

import (
	"encoding/binary"
	"strings"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// DagTransferTable holds one row per account with a "balance" field.
// DagTransfer is a minimal balance-transfer precompiled, present in
// original_source/libblockverifier/{DAG.h,TxDAG.cpp} as the historical
// DAG-based parallel executor BCOS used before the chunked-pipeline
// scheduler; kept here only as a deterministic, inspectable stand-in for
// the opaque VM (issue-then-transfer and RAW-conflict test scenarios).
const DagTransferTable = "s_dag_transfer"

const fieldBalance = "balance"

// DagTransferAddress is the fixed recipient for issue/transfer/balanceOf.
var DagTransferAddress = types.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x05}

var (
	selIssue     = Selector("issue(string,uint256)")
	selTransfer  = Selector("transfer(string,string,uint256)")
	selBalanceOf = Selector("balanceOf(string)")
)

func DagTransfer(ctx Context, selector [4]byte, payload []byte) Result {
	switch selector {
	case selIssue:
		return dagIssue(ctx, payload)
	case selTransfer:
		return dagTransfer(ctx, payload)
	case selBalanceOf:
		return dagBalanceOf(ctx, payload)
	default:
		return ResultRevert(CodeCallUndefinedFunction, "call undefined function")
	}
}

func dagIssue(ctx Context, payload []byte) Result {
	account, amount, ok := splitAccountAmount(payload)
	if !ok {
		return ResultRevert(CodeInvalidConfiguration, "malformed issue arguments")
	}
	balance, err := readBalance(ctx, account)
	if err != nil {
		return ResultFatal(err)
	}
	if err := writeBalance(ctx, account, balance+amount); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func dagTransfer(ctx Context, payload []byte) Result {
	parts := strings.SplitN(string(payload), "\n", 3)
	if len(parts) != 3 {
		return ResultRevert(CodeInvalidConfiguration, "malformed transfer arguments")
	}
	from, to := parts[0], parts[1]
	amount := binary.BigEndian.Uint64(padTo8([]byte(parts[2])))

	fromBalance, err := readBalance(ctx, from)
	if err != nil {
		return ResultFatal(err)
	}
	if fromBalance < amount {
		return ResultRevert(CodeInsufficientBalance, "insufficient balance")
	}
	toBalance, err := readBalance(ctx, to)
	if err != nil {
		return ResultFatal(err)
	}

	if err := writeBalance(ctx, from, fromBalance-amount); err != nil {
		return ResultFatal(err)
	}
	if err := writeBalance(ctx, to, toBalance+amount); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func dagBalanceOf(ctx Context, payload []byte) Result {
	balance, err := readBalance(ctx, string(payload))
	if err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(balance), 0)
}

func splitAccountAmount(payload []byte) (string, uint64, bool) {
	parts := strings.SplitN(string(payload), "\n", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	return parts[0], binary.BigEndian.Uint64(padTo8([]byte(parts[1]))), true
}

func readBalance(ctx Context, account string) (uint64, error) {
	key := types.StateKey{Table: DagTransferTable, RowKey: []byte(account)}
	entry, ok, err := ctx.State.Read(ctx.Ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return decodeUint64(entry.Fields[fieldBalance]), nil
}

func writeBalance(ctx Context, account string, balance uint64) error {
	key := types.StateKey{Table: DagTransferTable, RowKey: []byte(account)}
	entry := types.NewPresentEntry(map[string][]byte{fieldBalance: encodeUint64(balance)})
	return ctx.State.Write(ctx.Ctx, key, entry)
}

// padTo8 right-aligns b into an 8-byte big-endian buffer, truncating from
// the left if b is longer; used to decode the fixed test payload's
// numeric strings without a full uint256 ABI decoder.
func padTo8(b []byte) []byte {
	out := make([]byte, 8)
	if len(b) >= 8 {
		copy(out, b[len(b)-8:])
		return out
	}
	copy(out[8-len(b):], b)
	return out
}
