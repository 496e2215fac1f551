package scheduler

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/fiscobcos/tx-scheduler/pkg/config"
	"github.com/fiscobcos/tx-scheduler/pkg/executor"
	"github.com/fiscobcos/tx-scheduler/pkg/kv"
	"github.com/fiscobcos/tx-scheduler/pkg/precompiled"
	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	selIssue     = precompiled.Selector("issue(string,uint256)")
	selTransfer  = precompiled.Selector("transfer(string,string,uint256)")
	balanceField = "balance" // matches precompiled's unexported dagtransfer field name
)

func amountBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func txHash(tag byte) [32]byte {
	var h [32]byte
	h[0] = tag
	return h
}

func issueTx(tag byte, account string, amount uint64) types.Transaction {
	payload := append(append([]byte(nil), selIssue[:]...), []byte(account+"\n")...)
	payload = append(payload, amountBytes(amount)...)
	return types.Transaction{Hash: txHash(tag), Recipient: precompiled.DagTransferAddress, Input: payload}
}

func transferTx(tag byte, from, to string, amount uint64) types.Transaction {
	payload := append(append([]byte(nil), selTransfer[:]...), []byte(from+"\n"+to+"\n")...)
	payload = append(payload, amountBytes(amount)...)
	return types.Transaction{Hash: txHash(tag), Recipient: precompiled.DagTransferAddress, Input: payload}
}

func noopVM(ctx context.Context, header executor.BlockHeader, call executor.CallContext, view executor.StateView) (executor.VMResult, error) {
	return executor.VMResult{}, fmt.Errorf("vm callback not exercised by precompiled-only test transactions")
}

func newTestExecutor(cfg config.GlobalConfig) *executor.Executor {
	return executor.New(precompiled.DefaultRegistry(), cfg, noopVM)
}

func readBalance(t *testing.T, store *state.Store, account string) uint64 {
	t.Helper()
	key := types.StateKey{Table: precompiled.DagTransferTable, RowKey: []byte(account)}
	entry, ok, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	if !ok {
		return 0
	}
	return binary.BigEndian.Uint64(entry.Fields[balanceField])
}

func TestExecuteBlockSerialIssueThenTransfer(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(kv.NewMemBackend())
	exec := newTestExecutor(config.Default())
	txs := []types.Transaction{
		issueTx(1, "alice", 100),
		transferTx(2, "alice", "bob", 40),
	}

	receipts, err := ExecuteBlockSerial(ctx, exec, executor.BlockHeader{Number: 1}, store, txs)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, types.StatusSuccess, receipts[0].Status)
	assert.Equal(t, types.StatusSuccess, receipts[1].Status)
	assert.Equal(t, uint64(60), readBalance(t, store, "alice"))
	assert.Equal(t, uint64(40), readBalance(t, store, "bob"))
}

func TestExecuteBlockSerialRevertDoesNotLeakIntoNextTx(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(kv.NewMemBackend())
	exec := newTestExecutor(config.Default())
	txs := []types.Transaction{
		transferTx(1, "alice", "bob", 40), // alice has no balance yet: reverts
		issueTx(2, "alice", 100),          // must still apply cleanly
	}

	receipts, err := ExecuteBlockSerial(ctx, exec, executor.BlockHeader{Number: 1}, store, txs)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, types.StatusRevert, receipts[0].Status)
	assert.Equal(t, types.StatusSuccess, receipts[1].Status)
	assert.Equal(t, uint64(100), readBalance(t, store, "alice"))
	assert.Equal(t, uint64(0), readBalance(t, store, "bob"))
}

func TestExecuteBlockParallelMergesDisjointChunks(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(kv.NewMemBackend())
	cfg := config.Default()
	cfg.ChunkSize = 1
	cfg.MaxThreads = 2
	exec := newTestExecutor(cfg)

	txs := []types.Transaction{
		issueTx(1, "alice", 100),
		issueTx(2, "bob", 50),
	}

	receipts, err := ExecuteBlockParallel(ctx, exec, executor.BlockHeader{Number: 1}, store, txs, cfg, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, types.StatusSuccess, receipts[0].Status)
	assert.Equal(t, types.StatusSuccess, receipts[1].Status)
	assert.Equal(t, uint64(100), readBalance(t, store, "alice"))
	assert.Equal(t, uint64(50), readBalance(t, store, "bob"))
}

// TestExecuteBlockParallelReplaysRAWConflict puts a chunk's transfer in
// the same concurrent batch as the issue it depends on, so the transfer
// initially speculates against a stale (zero) balance. The merge stage
// must detect the conflict, discard the transfer chunk unmerged, and
// replay it after the issue has landed rather than let either chunk
// silently commit a stale result.
func TestExecuteBlockParallelReplaysRAWConflict(t *testing.T) {
	ctx := context.Background()
	store := state.NewStore(kv.NewMemBackend())
	cfg := config.Default()
	cfg.ChunkSize = 1
	cfg.MaxThreads = 2
	exec := newTestExecutor(cfg)

	txs := []types.Transaction{
		issueTx(1, "alice", 100),
		transferTx(2, "alice", "bob", 30),
	}

	receipts, err := ExecuteBlockParallel(ctx, exec, executor.BlockHeader{Number: 1}, store, txs, cfg, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, types.StatusSuccess, receipts[0].Status)
	assert.Equal(t, types.StatusSuccess, receipts[1].Status)
	assert.Equal(t, uint64(70), readBalance(t, store, "alice"))
	assert.Equal(t, uint64(30), readBalance(t, store, "bob"))
}

func TestExecuteBlockParallelMatchesSerialAcrossManyChunks(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.ChunkSize = 3
	cfg.MaxThreads = 4
	exec := newTestExecutor(cfg)

	var txs []types.Transaction
	txs = append(txs, issueTx(0, "alice", 1000))
	for i := byte(1); i <= 20; i++ {
		txs = append(txs, transferTx(i, "alice", "bob", 5))
	}

	serialStore := state.NewStore(kv.NewMemBackend())
	serialReceipts, err := ExecuteBlockSerial(ctx, exec, executor.BlockHeader{Number: 1}, serialStore, txs)
	require.NoError(t, err)

	parallelStore := state.NewStore(kv.NewMemBackend())
	parallelReceipts, err := ExecuteBlockParallel(ctx, exec, executor.BlockHeader{Number: 1}, parallelStore, txs, cfg, nil)
	require.NoError(t, err)

	require.Len(t, parallelReceipts, len(serialReceipts))
	for i := range serialReceipts {
		assert.Equal(t, serialReceipts[i].Status, parallelReceipts[i].Status, "receipt %d", i)
	}
	assert.Equal(t, readBalance(t, serialStore, "alice"), readBalance(t, parallelStore, "alice"))
	assert.Equal(t, readBalance(t, serialStore, "bob"), readBalance(t, parallelStore, "bob"))
}
