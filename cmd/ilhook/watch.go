package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/chain"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/config"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/engine"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/hook"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/storage"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/storage/postgres"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/watch"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.HookAddress) {
		return fmt.Errorf("valid hook address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	decoder, err := hook.NewDecoder()
	if err != nil {
		return err
	}

	eng := engine.New(logger)
	applier := hook.NewApplier(eng, hook.Defaults{
		PremiumRateBps: cfg.DefaultPremiumBps,
		ILToleranceBps: cfg.DefaultToleranceBps,
	}, logger)

	var journal watch.Journal
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		journal = store
	}

	sinks := watch.Sinks{
		Events:   storage.NewJsonlWriter(cfg.EventsOut),
		Payouts:  storage.NewJsonlWriter(cfg.PayoutsOut),
		Premiums: storage.NewJsonlWriter(cfg.PremiumsOut),
		Errors:   storage.NewJsonlWriter(cfg.ErrorsOut),
	}

	runner := watch.NewRunner(watch.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		HookAddress:       common.HexToAddress(cfg.HookAddress),
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, decoder, applier, eng, journal, sinks, logger)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("hook_address", cfg.HookAddress),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.Bool("journal", journal != nil),
	)

	return runner.Run(ctx)
}
