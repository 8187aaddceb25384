package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/hook"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/pool"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/storage"
)

// Sinks groups the replay outputs.
type Sinks struct {
	Payouts  storage.PayoutSink
	Premiums storage.PremiumSink
	Errors   storage.ErrorSink
}

// Runner re-drives the engine from a JSONL capture of hook events.
type Runner struct {
	applier *hook.Applier
	sinks   Sinks
	logger  *zap.Logger
}

func NewRunner(applier *hook.Applier, sinks Sinks, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{applier: applier, sinks: sinks, logger: logger}
}

// Stats summarizes one replay pass.
type Stats struct {
	Total    int
	Applied  int
	Payouts  int
	Premiums int
	Rejected int
}

// Run replays the events file in line order. Event order within the file is
// the settlement order: open/close sequencing per key follows the capture.
func (r *Runner) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats

	file, err := os.Open(inputPath)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	payouts := make([]model.PayoutInstruction, 0)
	premiums := make([]model.PremiumCredited, 0)
	rejected := make([]model.DecodeError, 0)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.HookEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Rejected++
			r.logger.Warn("decode event record", zap.Error(err))
			continue
		}

		event, err := hook.ParseRecord(record)
		if err != nil {
			stats.Rejected++
			rejected = append(rejected, rejectedRecord(record, err))
			r.logger.Warn("parse event record", zap.Error(err), zap.String("event", record.EventName))
			continue
		}

		outcome, err := r.applier.Apply(event)
		if err != nil {
			if errors.Is(err, pool.ErrAlreadyActivated) {
				continue
			}
			stats.Rejected++
			rejected = append(rejected, rejectedRecord(record, err))
			r.logger.Warn("apply event record", zap.Error(err), zap.String("event", record.EventName))
			continue
		}
		stats.Applied++

		if outcome.Payout != nil {
			stats.Payouts++
			payouts = append(payouts, *outcome.Payout)
		}
		if outcome.Premium != nil {
			stats.Premiums++
			premiums = append(premiums, *outcome.Premium)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	if r.sinks.Payouts != nil {
		if err := r.sinks.Payouts.PutPayouts(payouts); err != nil {
			return stats, fmt.Errorf("store payouts: %w", err)
		}
	}
	if r.sinks.Premiums != nil {
		if err := r.sinks.Premiums.PutPremiums(premiums); err != nil {
			return stats, fmt.Errorf("store premiums: %w", err)
		}
	}
	if r.sinks.Errors != nil {
		if err := r.sinks.Errors.PutErrors(rejected); err != nil {
			return stats, fmt.Errorf("store errors: %w", err)
		}
	}

	r.logger.Info("replay complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("payouts", stats.Payouts),
		zap.Int("premiums", stats.Premiums),
		zap.Int("rejected", stats.Rejected),
	)
	return stats, nil
}

func rejectedRecord(record model.HookEventRecord, err error) model.DecodeError {
	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Error:       err.Error(),
	}
}
