// Package log provides structured logging for the transaction execution
// core using zerolog. Components obtain a child logger carrying their
// component name and, where useful, the block/chunk/transaction they are
// currently processing, so a single log line is enough to locate it in a
// multi-threaded pipeline run.
package log

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// Usable before Init is explicitly called, e.g. from unit tests.
	Init(Config{Level: InfoLevel, JSONOutput: false, Output: os.Stdout})
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithBlock adds the block number the current operation is processing.
func WithBlock(l zerolog.Logger, blockNumber uint64) zerolog.Logger {
	return l.With().Uint64("block", blockNumber).Logger()
}

// WithChunk adds the pipeline chunk index, its starting context id, and
// the run id of this particular execution attempt (a chunk replayed
// after a conflict gets a fresh run id, so its two attempts are
// distinguishable in logs that share a chunk index).
func WithChunk(l zerolog.Logger, chunkIndex int, startContextID int, runID uuid.UUID) zerolog.Logger {
	return l.With().Int("chunk", chunkIndex).Int("start_context_id", startContextID).Stringer("run_id", runID).Logger()
}

// WithTx adds a hex-encoded transaction hash.
func WithTx(l zerolog.Logger, hash [32]byte) zerolog.Logger {
	return l.With().Hex("tx", hash[:]).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
