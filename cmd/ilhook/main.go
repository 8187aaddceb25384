package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ilhook",
		Short:        "Impermanent-loss insurance hook engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch hook logs on chain and settle positions",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	watchCmd.Flags().String("hook-address", "", "insurance hook contract address")
	watchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	watchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	watchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	watchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	watchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	watchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	watchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN for the journal (optional)")
	watchCmd.Flags().String("events-out", "./data/events.jsonl", "decoded events JSONL")
	watchCmd.Flags().String("payouts-out", "./data/payouts.jsonl", "payout instructions JSONL")
	watchCmd.Flags().String("premiums-out", "./data/premiums.jsonl", "premium credits JSONL")
	watchCmd.Flags().String("errors-out", "./data/errors.jsonl", "rejected logs JSONL")
	watchCmd.Flags().Uint32("default-premium-bps", 2, "premium rate when activation carries zero")
	watchCmd.Flags().Uint32("default-tolerance-bps", 100, "IL tolerance when activation carries zero")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(watchCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a JSONL event capture through the engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input events JSONL")
	replayCmd.Flags().String("payouts-out", "./data/payouts.jsonl", "payout instructions JSONL")
	replayCmd.Flags().String("premiums-out", "./data/premiums.jsonl", "premium credits JSONL")
	replayCmd.Flags().String("errors-out", "./data/errors.jsonl", "rejected records JSONL")
	replayCmd.Flags().Uint32("default-premium-bps", 2, "premium rate when activation carries zero")
	replayCmd.Flags().Uint32("default-tolerance-bps", 100, "IL tolerance when activation carries zero")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show pool policy, reserve balance and recent payouts",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	inspectCmd.Flags().String("pool-id", "", "pool id (0x-prefixed bytes32)")
	inspectCmd.Flags().Int("limit", 20, "max payouts to list")
	inspectCmd.Flags().Int32("decimals", 18, "token decimals for amount display")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
