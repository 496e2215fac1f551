// Package config holds the GlobalConfig value threaded through the
// transaction execution core's constructors, replacing the process-wide
// mutable singletons the original implementation used for scheduler and
// system-config tuning (see DESIGN.md, Design Note §9).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GlobalConfig is passed explicitly: to the executor at construction
// time (which hands it to precompiled handlers in each call's Context)
// and to the parallel scheduler per block. There is no package-level
// mutable equivalent.
type GlobalConfig struct {
	// ChunkSize is the number of transactions per pipeline chunk.
	ChunkSize int `yaml:"chunk_size"`
	// MaxThreads bounds the number of concurrently executing chunks.
	MaxThreads int `yaml:"max_threads"`
	// TxGasLimitMin is the floor enforced by the system-config
	// precompiled when tx_gas_limit is set.
	TxGasLimitMin int64 `yaml:"tx_gas_limit_min"`
	// TxCountLimitMin is the floor enforced when tx_count_limit is set.
	TxCountLimitMin int64 `yaml:"tx_count_limit_min"`
	// MinSupportedVersion/MaxSupportedVersion bound
	// compatibility_version.
	MinSupportedVersion uint32 `yaml:"min_supported_version"`
	MaxSupportedVersion uint32 `yaml:"max_supported_version"`
}

// Default returns the configuration used when none is supplied, matching
// spec.md §4.9's stated defaults (chunk size 1000, thread budget 16).
func Default() GlobalConfig {
	return GlobalConfig{
		ChunkSize:           1000,
		MaxThreads:          16,
		TxGasLimitMin:       10000,
		TxCountLimitMin:     1,
		MinSupportedVersion: 1,
		MaxSupportedVersion: 1000,
	}
}

// Load reads a GlobalConfig from a YAML file, starting from Default() so
// a partial file only overrides the fields it sets.
func Load(path string) (GlobalConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate rejects nonsensical values before they reach the scheduler.
func (c GlobalConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxThreads <= 0 {
		return fmt.Errorf("max_threads must be positive, got %d", c.MaxThreads)
	}
	if c.MinSupportedVersion > c.MaxSupportedVersion {
		return fmt.Errorf("min_supported_version (%d) exceeds max_supported_version (%d)",
			c.MinSupportedVersion, c.MaxSupportedVersion)
	}
	return nil
}
