// Command txscheduler runs and benchmarks the transaction execution core
// standalone: a single node executing blocks of transactions against a
// durable or in-memory multi-layer state store, with no consensus,
// networking, or RPC surface attached (those stay external collaborators,
// spec.md §1 Non-goals).
package main

import (
	"fmt"
	"os"

	"github.com/fiscobcos/tx-scheduler/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "txscheduler",
	Short: "FISCO BCOS transaction execution core",
	Long: `txscheduler drives blocks of transactions through the
multi-layer state store, the serial reference scheduler, and the
chunked-pipeline parallel scheduler.

It is the execution core in isolation: consensus, P2P gossip, and the
JSON-RPC/gRPC surface a full node would expose are out of scope here.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"txscheduler version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
