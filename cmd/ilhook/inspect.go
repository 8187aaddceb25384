package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/config"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/storage/postgres"
)

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.PoolID == "" {
		return fmt.Errorf("pool id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	poolCfg, ok, err := store.GetPoolConfig(ctx, cfg.PoolID)
	if err != nil {
		return fmt.Errorf("read pool config: %w", err)
	}
	if !ok {
		fmt.Printf("pool %s: not activated\n", cfg.PoolID)
		return nil
	}

	balance, err := store.GetReserveBalance(ctx, cfg.PoolID)
	if err != nil {
		return fmt.Errorf("read reserve: %w", err)
	}

	fmt.Printf("pool %s\n", poolCfg.PoolID)
	fmt.Printf("  premium rate:  %d bps\n", poolCfg.PremiumRateBps)
	fmt.Printf("  il tolerance:  %d bps\n", poolCfg.ILToleranceBps)
	fmt.Printf("  active:        %v\n", poolCfg.Active)
	fmt.Printf("  reserve:       %s\n", formatAmount(balance, cfg.Decimals))

	payouts, err := store.RecentPayouts(ctx, cfg.PoolID, cfg.Limit)
	if err != nil {
		return fmt.Errorf("read payouts: %w", err)
	}

	if len(payouts) == 0 {
		fmt.Println("  payouts:       none")
		return nil
	}

	fmt.Printf("  payouts (%d):\n", len(payouts))
	for _, payout := range payouts {
		fmt.Printf("    %s  %s  il=%d bps  tx=%s\n",
			payout.Provider, formatAmount(payout.Amount, cfg.Decimals), payout.ILBps, payout.TxHash)
	}
	return nil
}

func formatAmount(raw string, decimals int32) string {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return value.Shift(-decimals).String()
}
