package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/chain"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/engine"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/hook"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/pool"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/storage"
)

// RunConfig holds runtime settings for the hook watcher.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	HookAddress       common.Address
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Journal persists engine state transitions. *postgres.Store satisfies it;
// a nil journal disables persistence.
type Journal interface {
	UpsertPoolConfig(ctx context.Context, poolID string, premiumRateBps, ilToleranceBps uint32, active bool) error
	UpsertPosition(ctx context.Context, record model.PositionRecord) error
	MarkPositionClosed(ctx context.Context, poolID, provider string, closedAt uint64) error
	UpsertReserve(ctx context.Context, poolID, balance string) error
	InsertPayouts(ctx context.Context, payouts []model.PayoutInstruction) error
	InsertPremiums(ctx context.Context, premiums []model.PremiumCredited) error
}

// Sinks groups the optional JSONL outputs of a watch run.
type Sinks struct {
	Events   storage.EventSink
	Payouts  storage.PayoutSink
	Premiums storage.PremiumSink
	Errors   storage.ErrorSink
}

// Runner streams hook logs from the chain, applies them to the engine and
// journals the outcomes.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	decoder    *hook.Decoder
	applier    *hook.Applier
	engine     *engine.Engine
	journal    Journal
	sinks      Sinks
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient *chain.Client, decoder *hook.Decoder, applier *hook.Applier, eng *engine.Engine, journal Journal, sinks Sinks, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		decoder:    decoder,
		applier:    applier,
		engine:     eng,
		journal:    journal,
		sinks:      sinks,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the watch loop over the configured block range.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil || r.applier == nil || r.engine == nil {
		return fmt.Errorf("decoder, applier and engine are required")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.HookAddress == (common.Address{}) {
		return fmt.Errorf("hook address is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch hook logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		if err := r.processBatch(ctx, chainIDValue, logs); err != nil {
			return err
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete", zap.Int("logs", len(logs)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (r *Runner) processBatch(ctx context.Context, chainID uint64, logs []types.Log) error {
	ingestedAt := time.Now().UTC().Format(time.RFC3339Nano)

	events := make([]*model.HookEvent, 0, len(logs))
	payouts := make([]model.PayoutInstruction, 0)
	premiums := make([]model.PremiumCredited, 0)
	rejected := make([]model.DecodeError, 0)

	for _, logEntry := range logs {
		if logEntry.Removed || r.isDuplicate(logEntry) {
			continue
		}

		ts, err := r.blockTimestampWithRetry(ctx, logEntry.BlockNumber)
		if err != nil {
			return fmt.Errorf("block timestamp %d: %w", logEntry.BlockNumber, err)
		}

		record := buildLogRecord(chainID, logEntry, ts, ingestedAt)
		if len(record.Topics) == 0 || !r.decoder.CanDecode(record.Topics[0]) {
			continue
		}

		event, err := r.decoder.Decode(record)
		if err != nil {
			rejected = append(rejected, rejectedRecord(record, err))
			r.logger.Warn("decode hook log", zap.Error(err), zap.Uint64("block", record.BlockNumber))
			continue
		}
		events = append(events, event)

		outcome, err := r.applier.Apply(event)
		if err != nil {
			if errors.Is(err, pool.ErrAlreadyActivated) {
				r.logger.Debug("pool already activated", zap.String("tx", event.TxHash))
				continue
			}
			rejected = append(rejected, rejectedRecord(record, err))
			r.logger.Warn("apply hook event", zap.Error(err), zap.String("event", event.EventName))
			continue
		}

		if outcome.Payout != nil {
			payouts = append(payouts, *outcome.Payout)
		}
		if outcome.Premium != nil {
			premiums = append(premiums, *outcome.Premium)
		}

		if err := r.journalEvent(ctx, event, outcome); err != nil {
			return fmt.Errorf("journal event: %w", err)
		}
	}

	return r.flushSinks(events, payouts, premiums, rejected)
}

func (r *Runner) journalEvent(ctx context.Context, event *model.HookEvent, outcome hook.Outcome) error {
	if r.journal == nil {
		return nil
	}

	switch data := event.Decoded.(type) {
	case model.PoolActivatedData:
		poolID := common.HexToHash(data.PoolID)
		cfg, ok := r.engine.PoolConfig(poolID)
		if !ok {
			return nil
		}
		return r.journal.UpsertPoolConfig(ctx, data.PoolID, cfg.PremiumRateBps, cfg.ILToleranceBps, cfg.Active)
	case model.PositionOpenedData:
		return r.journal.UpsertPosition(ctx, model.PositionRecord{
			PoolID:         data.PoolID,
			Provider:       data.Provider,
			EntrySqrtPrice: data.SqrtPriceX96,
			EntryAmount0:   data.Amount0,
			EntryAmount1:   data.Amount1,
			OpenedAt:       event.Timestamp,
		})
	case model.PositionClosedData:
		if err := r.journal.MarkPositionClosed(ctx, data.PoolID, data.Provider, event.Timestamp); err != nil {
			return err
		}
		if outcome.Payout != nil {
			if err := r.journal.InsertPayouts(ctx, []model.PayoutInstruction{*outcome.Payout}); err != nil {
				return err
			}
		}
		return r.journalReserve(ctx, data.PoolID)
	case model.PremiumCollectedData:
		if outcome.Premium != nil {
			if err := r.journal.InsertPremiums(ctx, []model.PremiumCredited{*outcome.Premium}); err != nil {
				return err
			}
		}
		return r.journalReserve(ctx, data.PoolID)
	default:
		return nil
	}
}

func (r *Runner) journalReserve(ctx context.Context, poolID string) error {
	balance := r.engine.ReserveBalance(common.HexToHash(poolID))
	return r.journal.UpsertReserve(ctx, poolID, balance.String())
}

func (r *Runner) flushSinks(events []*model.HookEvent, payouts []model.PayoutInstruction, premiums []model.PremiumCredited, rejected []model.DecodeError) error {
	if r.sinks.Events != nil {
		if err := r.sinks.Events.PutEvents(events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
	}
	if r.sinks.Payouts != nil {
		if err := r.sinks.Payouts.PutPayouts(payouts); err != nil {
			return fmt.Errorf("store payouts: %w", err)
		}
	}
	if r.sinks.Premiums != nil {
		if err := r.sinks.Premiums.PutPremiums(premiums); err != nil {
			return fmt.Errorf("store premiums: %w", err)
		}
	}
	if r.sinks.Errors != nil {
		if err := r.sinks.Errors.PutErrors(rejected); err != nil {
			return fmt.Errorf("store errors: %w", err)
		}
	}
	return nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{r.cfg.HookAddress}, nil)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(logEntry types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", logEntry.BlockNumber, logEntry.TxHash.Hex(), logEntry.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}

func buildLogRecord(chainID uint64, logEntry types.Log, timestamp uint64, ingestedAt string) model.LogRecord {
	topics := make([]string, 0, len(logEntry.Topics))
	for _, topic := range logEntry.Topics {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     chainID,
		BlockNumber: logEntry.BlockNumber,
		BlockHash:   logEntry.BlockHash.Hex(),
		TxHash:      logEntry.TxHash.Hex(),
		TxIndex:     uint64(logEntry.TxIndex),
		LogIndex:    uint64(logEntry.Index),
		Address:     logEntry.Address.Hex(),
		Topics:      topics,
		Data:        "0x" + common.Bytes2Hex(logEntry.Data),
		Removed:     logEntry.Removed,
		Timestamp:   timestamp,
		IngestedAt:  ingestedAt,
	}
}

func rejectedRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}
	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
