package precompiled

import (
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// AccountTable holds one row per account address, fields "status" and
// "last_update_block", grounded on
// original_source/bcos-executor/src/precompiled/extension/AccountPrecompiled.cpp.
const AccountTable = "s_accounts"

const (
	fieldStatus          = "status"
	fieldLastUpdateBlock = "last_update_block"
)

// AccountAddress is the fixed recipient for account status calls.
var AccountAddress = types.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x03}

// AccountManagerAddress is the only sender permitted to change an
// account's status.
var AccountManagerAddress = types.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x06}

var (
	selSetAccountStatus = Selector("setAccountStatus(uint16)")
	selGetAccountStatus = Selector("getAccountStatus()")
)

// Account is the per-account status precompiled.
func Account(ctx Context, selector [4]byte, payload []byte) Result {
	switch selector {
	case selSetAccountStatus:
		return setAccountStatus(ctx, payload)
	case selGetAccountStatus:
		return getAccountStatus(ctx, payload)
	default:
		return ResultRevert(CodeCallUndefinedFunction, "call undefined function")
	}
}

func setAccountStatus(ctx Context, payload []byte) Result {
	if ctx.Sender != AccountManagerAddress {
		return ResultRevert(CodeNoAuthorized, "not authorized")
	}
	if len(payload) < 1 {
		return ResultRevert(CodeInvalidConfiguration, "missing status byte")
	}
	status := payload[0]

	key := types.StateKey{Table: AccountTable, RowKey: []byte(payload[1:])}
	entry := types.NewPresentEntry(map[string][]byte{
		fieldStatus:          {status},
		fieldLastUpdateBlock: encodeUint64(ctx.BlockNumber),
	})
	if err := ctx.State.Write(ctx.Ctx, key, entry); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func getAccountStatus(ctx Context, payload []byte) Result {
	key := types.StateKey{Table: AccountTable, RowKey: payload}
	entry, ok, err := ctx.State.Read(ctx.Ctx, key)
	if err != nil {
		return ResultFatal(err)
	}
	if !ok {
		return ResultOk([]byte{0}, 0)
	}
	return ResultOk(entry.Fields[fieldStatus], 0)
}
