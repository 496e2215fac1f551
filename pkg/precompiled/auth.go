package precompiled

import (
	"sort"
	"strings"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// AuthAddress is the fixed recipient for per-table authorized-writer
// management, grounded on
// original_source/libstorage/AuthorityPrecompiled.cpp's sys_access_table.
var AuthAddress = types.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x04}

var (
	selAuthInsert = Selector("insert(string,string)")
	selAuthRemove = Selector("remove(string,string)")
	selAuthQuery  = Selector("queryByName(string)")
)

// Auth is the insert/remove/queryByName precompiled governing
// TableInfo.AuthorizedWriters.
func Auth(ctx Context, selector [4]byte, payload []byte) Result {
	switch selector {
	case selAuthInsert:
		return authGrant(ctx, payload)
	case selAuthRemove:
		return authRevoke(ctx, payload)
	case selAuthQuery:
		return authQuery(ctx, payload)
	default:
		return ResultRevert(CodeCallUndefinedFunction, "call undefined function")
	}
}

func authGrant(ctx Context, payload []byte) Result {
	tableName, addrStr, ok := splitTwo(payload)
	if !ok {
		return ResultRevert(CodeInvalidConfiguration, "malformed insert arguments")
	}
	info, result := loadTableInfo(ctx, tableName)
	if result != nil {
		return *result
	}
	if info.AuthorizedWriters == nil {
		info.AuthorizedWriters = make(map[string]struct{})
	}
	if _, exists := info.AuthorizedWriters[addrStr]; exists {
		return ResultRevert(CodeInvalidConfiguration, "table name and address exist")
	}
	info.AuthorizedWriters[addrStr] = struct{}{}
	if err := saveTableInfo(ctx, info); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func authRevoke(ctx Context, payload []byte) Result {
	tableName, addrStr, ok := splitTwo(payload)
	if !ok {
		return ResultRevert(CodeInvalidConfiguration, "malformed remove arguments")
	}
	info, result := loadTableInfo(ctx, tableName)
	if result != nil {
		return *result
	}
	delete(info.AuthorizedWriters, addrStr)
	if err := saveTableInfo(ctx, info); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func authQuery(ctx Context, payload []byte) Result {
	tableName := string(payload)
	info, result := loadTableInfo(ctx, tableName)
	if result != nil {
		return *result
	}
	names := make([]string, 0, len(info.AuthorizedWriters))
	for addr := range info.AuthorizedWriters {
		names = append(names, addr)
	}
	sort.Strings(names)
	return ResultOk([]byte(strings.Join(names, ",")), 0)
}

func splitTwo(payload []byte) (string, string, bool) {
	parts := strings.SplitN(string(payload), "\n", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// saveTableInfo persists an updated AuthorizedWriters set into the
// meta-table row's "auth" field, extending the meta-table encoding used
// by TableManager with an authorization column specific to this
// precompiled.
func saveTableInfo(ctx Context, info *types.TableInfo) error {
	metaKey := types.StateKey{Table: MetaTable, RowKey: []byte(info.Name)}
	entry, _, err := ctx.State.Read(ctx.Ctx, metaKey)
	if err != nil {
		return err
	}
	fields := map[string][]byte{
		metaFieldKeyField:    []byte(info.KeyField),
		metaFieldValueFields: entry.Fields[metaFieldValueFields],
	}
	names := make([]string, 0, len(info.AuthorizedWriters))
	for addr := range info.AuthorizedWriters {
		names = append(names, addr)
	}
	sort.Strings(names)
	fields[metaFieldAuth] = []byte(strings.Join(names, ","))
	return ctx.State.Write(ctx.Ctx, metaKey, types.NewPresentEntry(fields))
}

const metaFieldAuth = "auth"
