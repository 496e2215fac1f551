package precompiled

import (
	"strconv"
	"strings"

	"github.com/fiscobcos/tx-scheduler/pkg/config"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
)

// SysConfigTable holds one row per system configuration key, grounded on
// original_source/bcos-executor/src/precompiled/SystemConfigPrecompiled.cpp's
// SYS_CONFIG table: fields "value" and "enable_num".
const SysConfigTable = "s_config"

const (
	fieldValue     = "value"
	fieldEnableNum = "enable_num"
)

// Known system configuration keys and their validators, matching the
// original's m_sysValueCmp table.
const (
	KeyTxGasLimit            = "tx_gas_limit"
	KeyConsensusLeaderPeriod = "consensus_leader_period"
	KeyTxCountLimit          = "tx_count_limit"
	KeyCompatibilityVersion  = "compatibility_version"
)

// SystemConfigAddress is the fixed recipient for the system config
// precompiled.
var SystemConfigAddress = types.Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x00}

var (
	selSetValueByKey = Selector("setValueByKey(string,string)")
	selGetValueByKey = Selector("getValueByKey(string)")
)

// SystemConfig is the setValueByKey/getValueByKey precompiled.
func SystemConfig(ctx Context, selector [4]byte, payload []byte) Result {
	switch selector {
	case selSetValueByKey:
		return sysConfigSet(ctx, payload)
	case selGetValueByKey:
		return sysConfigGet(ctx, payload)
	default:
		return ResultRevert(CodeCallUndefinedFunction, "call undefined function")
	}
}

// decodeTwoStrings and decodeOneString are a minimal stand-in for the ABI
// codec (out of scope per spec.md §1): arguments arrive
// newline-delimited, which is sufficient for this spec's deterministic
// test scenarios without modeling full ABI encoding.
func decodeTwoStrings(payload []byte) (string, string) {
	parts := strings.SplitN(string(payload), "\n", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func decodeOneString(payload []byte) string {
	return string(payload)
}

func sysConfigSet(ctx Context, payload []byte) Result {
	key, value := decodeTwoStrings(payload)
	key = strings.ToLower(key)

	if !checkSysConfigValue(ctx.Config, key, value) {
		return ResultRevert(CodeInvalidConfiguration, "invalid configuration value")
	}

	rowKey := types.StateKey{Table: SysConfigTable, RowKey: []byte(key)}
	entry := types.NewPresentEntry(map[string][]byte{
		fieldValue:     []byte(value),
		fieldEnableNum: encodeUint64(ctx.BlockNumber + 1),
	})
	if err := ctx.State.Write(ctx.Ctx, rowKey, entry); err != nil {
		return ResultFatal(err)
	}
	return ResultOk(encodeUint64(uint64(CodeSuccess)), 0)
}

func sysConfigGet(ctx Context, payload []byte) Result {
	key := strings.ToLower(decodeOneString(payload))
	rowKey := types.StateKey{Table: SysConfigTable, RowKey: []byte(key)}

	entry, ok, err := ctx.State.Read(ctx.Ctx, rowKey)
	if err != nil {
		return ResultFatal(err)
	}
	if !ok {
		// Unknown key: empty value, sentinel enable number -1.
		return ResultOk([]byte("\n-1"), 0)
	}
	value := string(entry.Fields[fieldValue])
	enableNum := decodeUint64(entry.Fields[fieldEnableNum])
	return ResultOk([]byte(value+"\n"+strconv.FormatUint(enableNum, 10)), 0)
}

// checkSysConfigValue validates a candidate value per the per-key
// predicate table, matching checkValueValid.
func checkSysConfigValue(cfg config.GlobalConfig, key, value string) bool {
	if value == "" {
		return false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// compatibility_version values like "3.1.0" convert through
		// tool.toVersionNumber in the original; keys without a numeric
		// predicate accept any non-empty string.
		return key == KeyCompatibilityVersion || !isKnownNumericKey(key)
	}
	switch key {
	case KeyTxGasLimit:
		return n > cfg.TxGasLimitMin
	case KeyConsensusLeaderPeriod:
		return n >= 1
	case KeyTxCountLimit:
		return n >= cfg.TxCountLimitMin
	case KeyCompatibilityVersion:
		return n >= int64(cfg.MinSupportedVersion) && n <= int64(cfg.MaxSupportedVersion)
	default:
		return true
	}
}

func isKnownNumericKey(key string) bool {
	switch key {
	case KeyTxGasLimit, KeyConsensusLeaderPeriod, KeyTxCountLimit, KeyCompatibilityVersion:
		return true
	default:
		return false
	}
}
