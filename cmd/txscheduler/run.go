package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/fiscobcos/tx-scheduler/pkg/config"
	"github.com/fiscobcos/tx-scheduler/pkg/events"
	"github.com/fiscobcos/tx-scheduler/pkg/executor"
	"github.com/fiscobcos/tx-scheduler/pkg/kv"
	"github.com/fiscobcos/tx-scheduler/pkg/log"
	"github.com/fiscobcos/tx-scheduler/pkg/metrics"
	"github.com/fiscobcos/tx-scheduler/pkg/precompiled"
	"github.com/fiscobcos/tx-scheduler/pkg/scheduler"
	"github.com/fiscobcos/tx-scheduler/pkg/state"
	"github.com/fiscobcos/tx-scheduler/pkg/types"
	"github.com/spf13/cobra"
)

// raftApplyTimeout bounds how long a single-node RaftBackend waits for a
// merge batch to commit before WriteSome returns an error.
const raftApplyTimeout = 5 * time.Second

// balanceField matches DagTransfer's unexported field name; the CLI
// reads the raw row rather than going through a balanceOf call so it
// doesn't need a transaction/executor round trip just to print state.
const balanceField = "balance"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a demo block and print its receipts",
	Long: `Builds a small block (an opening-balance issue per account followed
by random transfers) and executes it once, serially or through the
parallel pipeline, printing each receipt's outcome and the final account
balances.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("data-dir", "", "Durable data directory (bbolt); empty uses an in-memory store")
	runCmd.Flags().Bool("raft", false, "Replicate the durable backend's merges through a single-node raft log (requires --data-dir)")
	runCmd.Flags().String("config", "", "GlobalConfig YAML file; empty uses defaults")
	runCmd.Flags().Bool("parallel", false, "Use the chunked-pipeline parallel scheduler instead of the serial one")
	runCmd.Flags().Int("accounts", 8, "Number of accounts to issue balances to")
	runCmd.Flags().Int("transfers", 16, "Number of random transfers in the demo block")
	runCmd.Flags().Bool("watch", false, "Subscribe to the event broker and print scheduler events")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics at this address (empty disables it)")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := log.WithComponent("cmd")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("serving prometheus metrics")
	}

	backend, closeBackend, err := openBackend(cmd)
	if err != nil {
		return err
	}
	defer closeBackend()

	store := state.NewStore(backend)
	registry := precompiled.DefaultRegistry()
	exec := executor.New(registry, cfg, revertingVM)

	accounts, _ := cmd.Flags().GetInt("accounts")
	transfers, _ := cmd.Flags().GetInt("transfers")
	watch, _ := cmd.Flags().GetBool("watch")

	var broker *events.Broker
	if watch {
		broker = events.NewBroker()
		broker.Start()
		defer broker.Stop()
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)
		go func() {
			for event := range sub {
				fmt.Printf("[event] %s: %s\n", event.Type, event.Message)
			}
		}()
	}

	rng := rand.New(rand.NewSource(1))
	txs := append(issueBlock(accounts), transferBlock(rng, accounts, transfers)...)

	parallel, _ := cmd.Flags().GetBool("parallel")
	header := executor.BlockHeader{Number: 1}

	var receipts []types.Receipt
	if parallel {
		receipts, err = scheduler.ExecuteBlockParallel(ctx, exec, header, store, txs, cfg, broker)
	} else {
		receipts, err = scheduler.ExecuteBlockSerial(ctx, exec, header, store, txs)
	}
	if err != nil {
		return fmt.Errorf("run: block execution failed: %w", err)
	}

	succeeded := 0
	for i, r := range receipts {
		if r.Status == types.StatusSuccess {
			succeeded++
		} else {
			logger.Debug().Int("tx", i).Int32("status", int32(r.Status)).Msg("transaction did not succeed")
		}
	}
	fmt.Printf("executed %d transactions, %d succeeded\n", len(receipts), succeeded)

	for i := 0; i < accounts; i++ {
		balance, err := readBalance(ctx, store, accountName(i))
		if err != nil {
			return fmt.Errorf("run: failed to read balance: %w", err)
		}
		fmt.Printf("  %s: %d\n", accountName(i), balance)
	}
	return nil
}

func revertingVM(ctx context.Context, header executor.BlockHeader, call executor.CallContext, view executor.StateView) (executor.VMResult, error) {
	return executor.VMResult{Reverted: true}, nil
}

func readBalance(ctx context.Context, store *state.Store, account string) (uint64, error) {
	key := types.StateKey{Table: precompiled.DagTransferTable, RowKey: []byte(account)}
	entry, ok, err := store.Read(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	field, ok := entry.Field(balanceField)
	if !ok || len(field) < 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(field), nil
}

func loadConfig(cmd *cobra.Command) (config.GlobalConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.GlobalConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.GlobalConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openBackend(cmd *cobra.Command) (kv.Backend, func(), error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		backend := kv.NewMemBackend()
		return backend, func() { _ = backend.Close() }, nil
	}
	backend, err := kv.NewBoltBackend(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bbolt backend: %w", err)
	}

	useRaft, _ := cmd.Flags().GetBool("raft")
	if !useRaft {
		return backend, func() { _ = backend.Close() }, nil
	}

	raftBackend, err := kv.NewRaftBackend("node-1", dataDir, backend, raftApplyTimeout)
	if err != nil {
		_ = backend.Close()
		return nil, nil, fmt.Errorf("failed to start raft backend: %w", err)
	}
	return raftBackend, func() { _ = raftBackend.Close() }, nil
}
