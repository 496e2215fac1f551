package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fiscobcos/tx-scheduler/pkg/config"
	"github.com/fiscobcos/tx-scheduler/pkg/executor"
	"github.com/fiscobcos/tx-scheduler/pkg/kv"
	"github.com/fiscobcos/tx-scheduler/pkg/precompiled"
	"github.com/fiscobcos/tx-scheduler/pkg/scheduler"
	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/spf13/cobra"
)

// benchCmd repeats the issue-then-transfer workload over many blocks and
// reports throughput, grounded on
// original_source/transaction-scheduler/benchmark/benchmarkScheduler.cpp
// and original_source/bcos-sdk/sample/tars/performanceTransfer.cpp: both
// issue a fixed account set once, then fire a configurable count of
// transfers per round and report transactions/sec, comparing the serial
// and parallel schedulers head to head.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the serial and parallel schedulers head to head",
	Long: `Issues opening balances to a fixed set of accounts, then executes a
configurable number of blocks of random transfers through both the
serial reference scheduler and the chunked-pipeline parallel scheduler
against independent in-memory stores, reporting transactions/sec for
each.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().String("config", "", "GlobalConfig YAML file; empty uses defaults")
	benchCmd.Flags().Int("accounts", 1000, "Number of accounts to issue opening balances to")
	benchCmd.Flags().Int("blocks", 10, "Number of transfer blocks to execute")
	benchCmd.Flags().Int("block-size", 2000, "Number of transfers per block")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	accounts, _ := cmd.Flags().GetInt("accounts")
	blocks, _ := cmd.Flags().GetInt("blocks")
	blockSize, _ := cmd.Flags().GetInt("block-size")

	rng := rand.New(rand.NewSource(1))
	transferBlocks := make([][]types.Transaction, blocks)
	for i := range transferBlocks {
		transferBlocks[i] = transferBlock(rng, accounts, blockSize)
	}

	serialResult, err := benchRun(ctx, cfg, accounts, transferBlocks, false)
	if err != nil {
		return fmt.Errorf("bench: serial run failed: %w", err)
	}
	fmt.Printf("serial:   %8d txs in %10s (%.0f tx/s)\n", serialResult.txs, serialResult.elapsed, serialResult.rate())

	parallelResult, err := benchRun(ctx, cfg, accounts, transferBlocks, true)
	if err != nil {
		return fmt.Errorf("bench: parallel run failed: %w", err)
	}
	fmt.Printf("parallel: %8d txs in %10s (%.0f tx/s)\n", parallelResult.txs, parallelResult.elapsed, parallelResult.rate())

	return nil
}

type benchResult struct {
	txs     int
	elapsed time.Duration
}

func (r benchResult) rate() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.txs) / r.elapsed.Seconds()
}

func benchRun(ctx context.Context, cfg config.GlobalConfig, accounts int, transferBlocks [][]types.Transaction, parallel bool) (benchResult, error) {
	backend := kv.NewMemBackend()
	defer backend.Close()
	store := state.NewStore(backend)
	registry := precompiled.DefaultRegistry()
	exec := executor.New(registry, cfg, revertingVM)

	if _, err := scheduler.ExecuteBlockSerial(ctx, exec, executor.BlockHeader{Number: 0}, store, issueBlock(accounts)); err != nil {
		return benchResult{}, fmt.Errorf("failed to issue opening balances: %w", err)
	}

	start := time.Now()
	total := 0
	for i, txs := range transferBlocks {
		header := executor.BlockHeader{Number: uint64(i + 1)}
		var err error
		if parallel {
			_, err = scheduler.ExecuteBlockParallel(ctx, exec, header, store, txs, cfg, nil)
		} else {
			_, err = scheduler.ExecuteBlockSerial(ctx, exec, header, store, txs)
		}
		if err != nil {
			return benchResult{}, fmt.Errorf("block %d failed: %w", i+1, err)
		}
		total += len(txs)
	}
	return benchResult{txs: total, elapsed: time.Since(start)}, nil
}
