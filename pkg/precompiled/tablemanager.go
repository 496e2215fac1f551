package precompiled

import (
	"strings"

	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// MetaTable is the s_tables table: one row per user table, schema
// "key_field,value_fields", grounded on
// original_source/bcos-executor/src/precompiled/TableManagerPrecompiled.h
// and libstorage/Table.h/MemoryTable.h.
const MetaTable = "s_tables"

const (
	metaFieldKeyField    = "key_field"
	metaFieldValueFields = "value_fields"
)

// TableManagerAddress is the fixed recipient for table DDL.
var TableManagerAddress = types.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x01}

var (
	selCreateTable   = Selector("createTable(string,string,string)")
	selCreateKVTable = Selector("createKVTable(string,string,string)")
	selAppendColumn  = Selector("appendColumn(string,string)")
	selOpenTable     = Selector("openTable(string)")
)

// TableManager is the createTable/createKVTable/appendColumn/openTable
// precompiled.
func TableManager(ctx Context, selector [4]byte, payload []byte) Result {
	switch selector {
	case selCreateTable, selCreateKVTable:
		return createTable(ctx, payload)
	case selAppendColumn:
		return appendColumn(ctx, payload)
	case selOpenTable:
		return openTable(ctx, payload)
	default:
		return ResultRevert(CodeCallUndefinedFunction, "call undefined function")
	}
}

func createTable(ctx Context, payload []byte) Result {
	parts := strings.SplitN(string(payload), "\n", 3)
	if len(parts) < 2 {
		return ResultRevert(CodeInvalidConfiguration, "malformed createTable arguments")
	}
	tableName, keyField := parts[0], parts[1]
	valueFields := ""
	if len(parts) == 3 {
		valueFields = parts[2]
	}

	metaKey := types.StateKey{Table: MetaTable, RowKey: []byte(tableName)}
	_, exists, err := ctx.State.Read(ctx.Ctx, metaKey)
	if err != nil {
		return ResultFatal(err)
	}
	if exists {
		return ResultRevert(CodeTableExists, "table already exists")
	}

	entry := types.NewPresentEntry(map[string][]byte{
		metaFieldKeyField:    []byte(keyField),
		metaFieldValueFields: []byte(valueFields),
	})
	if err := ctx.State.Write(ctx.Ctx, metaKey, entry); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func appendColumn(ctx Context, payload []byte) Result {
	parts := strings.SplitN(string(payload), "\n", 2)
	if len(parts) < 2 {
		return ResultRevert(CodeInvalidConfiguration, "malformed appendColumn arguments")
	}
	tableName, column := parts[0], parts[1]

	metaKey := types.StateKey{Table: MetaTable, RowKey: []byte(tableName)}
	entry, exists, err := ctx.State.Read(ctx.Ctx, metaKey)
	if err != nil {
		return ResultFatal(err)
	}
	if !exists {
		return ResultRevert(CodeTableNotExists, "table does not exist")
	}

	info := tableInfoFromMeta(tableName, entry)
	if err := info.AppendColumn(column); err != nil {
		return ResultRevert(CodeInvalidConfiguration, err.Error())
	}

	updated := types.NewPresentEntry(map[string][]byte{
		metaFieldKeyField:    []byte(info.KeyField),
		metaFieldValueFields: []byte(strings.Join(info.ValueFields, ",")),
	})
	// Only the meta row is rewritten; existing data rows are left as-is
	// and read the new column back as empty (append-only schema).
	if err := ctx.State.Write(ctx.Ctx, metaKey, updated); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func openTable(ctx Context, payload []byte) Result {
	tableName := string(payload)
	metaKey := types.StateKey{Table: MetaTable, RowKey: []byte(tableName)}
	_, exists, err := ctx.State.Read(ctx.Ctx, metaKey)
	if err != nil {
		return ResultFatal(err)
	}
	if !exists {
		return ResultRevert(CodeTableNotExists, "table does not exist")
	}
	return ResultOk([]byte(tableName), 0)
}

// tableInfoFromMeta reconstructs a TableInfo from its s_tables row,
// including the authorized-writer set auth.go persists alongside it.
func tableInfoFromMeta(name string, meta types.Entry) *types.TableInfo {
	keyField := string(meta.Fields[metaFieldKeyField])
	var valueFields []string
	if raw := string(meta.Fields[metaFieldValueFields]); raw != "" {
		valueFields = strings.Split(raw, ",")
	}
	info := &types.TableInfo{Name: name, KeyField: keyField, ValueFields: valueFields}
	if raw := string(meta.Fields[metaFieldAuth]); raw != "" {
		info.AuthorizedWriters = make(map[string]struct{})
		for _, addr := range strings.Split(raw, ",") {
			info.AuthorizedWriters[addr] = struct{}{}
		}
	}
	return info
}
