package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/config"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/engine"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/hook"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/replay"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/storage"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(logger)
	applier := hook.NewApplier(eng, hook.Defaults{
		PremiumRateBps: cfg.DefaultPremiumBps,
		ILToleranceBps: cfg.DefaultToleranceBps,
	}, logger)

	runner := replay.NewRunner(applier, replay.Sinks{
		Payouts:  storage.NewJsonlWriter(cfg.PayoutsOut),
		Premiums: storage.NewJsonlWriter(cfg.PremiumsOut),
		Errors:   storage.NewJsonlWriter(cfg.ErrorsOut),
	}, logger)

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("payouts_out", cfg.PayoutsOut),
		zap.String("premiums_out", cfg.PremiumsOut),
	)

	stats, err := runner.Run(ctx, cfg.In)
	if err != nil {
		return err
	}

	fmt.Printf("replayed %d events: %d applied, %d payouts, %d premiums, %d rejected\n",
		stats.Total, stats.Applied, stats.Payouts, stats.Premiums, stats.Rejected)
	return nil
}
