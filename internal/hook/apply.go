package hook

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/engine"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/ilmath"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
)

// Defaults hold the pool policy values substituted when an activation event
// carries zeroes.
type Defaults struct {
	PremiumRateBps uint32
	ILToleranceBps uint32
}

// Outcome carries the engine effects of one applied event.
type Outcome struct {
	Payout  *model.PayoutInstruction
	Premium *model.PremiumCredited
}

// Applier feeds decoded hook events into the compensation engine.
type Applier struct {
	engine   *engine.Engine
	defaults Defaults
	logger   *zap.Logger
}

func NewApplier(eng *engine.Engine, defaults Defaults, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{engine: eng, defaults: defaults, logger: logger}
}

// Apply dispatches one event to the engine and returns its outcome. Errors
// are per-event: the caller decides whether to record and continue or abort.
func (a *Applier) Apply(event *model.HookEvent) (Outcome, error) {
	switch data := event.Decoded.(type) {
	case model.PoolActivatedData:
		return Outcome{}, a.applyPoolActivated(data)
	case model.PositionOpenedData:
		return Outcome{}, a.applyPositionOpened(data, event.Timestamp)
	case model.PositionModifiedData:
		return Outcome{}, a.applyPositionModified(data)
	case model.PositionClosedData:
		return a.applyPositionClosed(data, event.TxHash)
	case model.PremiumCollectedData:
		return a.applyPremiumCollected(data, event.TxHash)
	default:
		return Outcome{}, fmt.Errorf("unsupported payload type %T", event.Decoded)
	}
}

func (a *Applier) applyPoolActivated(data model.PoolActivatedData) error {
	poolID, err := parsePoolID(data.PoolID)
	if err != nil {
		return err
	}

	rate := data.PremiumRateBps
	if rate == 0 {
		rate = a.defaults.PremiumRateBps
	}
	tolerance := data.ILToleranceBps
	if tolerance == 0 {
		tolerance = a.defaults.ILToleranceBps
	}

	return a.engine.ActivatePool(poolID, rate, tolerance)
}

func (a *Applier) applyPositionOpened(data model.PositionOpenedData, timestamp uint64) error {
	poolID, err := parsePoolID(data.PoolID)
	if err != nil {
		return err
	}
	provider, err := parseProvider(data.Provider)
	if err != nil {
		return err
	}
	sqrtPrice, err := parseBigInt(data.SqrtPriceX96)
	if err != nil {
		return err
	}
	amount0, err := parseBigInt(data.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseBigInt(data.Amount1)
	if err != nil {
		return err
	}

	return a.engine.OpenPosition(poolID, provider, sqrtPrice, amount0, amount1, timestamp)
}

func (a *Applier) applyPositionModified(data model.PositionModifiedData) error {
	poolID, err := parsePoolID(data.PoolID)
	if err != nil {
		return err
	}
	provider, err := parseProvider(data.Provider)
	if err != nil {
		return err
	}

	if !a.engine.RecordPartialChange(poolID, provider) {
		a.logger.Debug("partial change without active position",
			zap.String("pool_id", data.PoolID),
			zap.String("provider", data.Provider),
		)
	}
	return nil
}

func (a *Applier) applyPositionClosed(data model.PositionClosedData, txHash string) (Outcome, error) {
	poolID, err := parsePoolID(data.PoolID)
	if err != nil {
		return Outcome{}, err
	}
	provider, err := parseProvider(data.Provider)
	if err != nil {
		return Outcome{}, err
	}
	sqrtPrice, err := parseBigInt(data.SqrtPriceX96)
	if err != nil {
		return Outcome{}, err
	}
	// A zero price sample would close the position and then fail the IL
	// computation with nothing to retry against. Reject it before Settle.
	if sqrtPrice.Sign() == 0 {
		return Outcome{}, fmt.Errorf("close %s/%s: %w", data.PoolID, data.Provider, ilmath.ErrZeroPrice)
	}
	amount0, err := parseBigInt(data.Amount0)
	if err != nil {
		return Outcome{}, err
	}
	amount1, err := parseBigInt(data.Amount1)
	if err != nil {
		return Outcome{}, err
	}

	payout, ok, err := a.engine.Settle(poolID, provider, sqrtPrice, amount0, amount1)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{}, nil
	}
	payout.TxHash = txHash
	return Outcome{Payout: &payout}, nil
}

func (a *Applier) applyPremiumCollected(data model.PremiumCollectedData, txHash string) (Outcome, error) {
	poolID, err := parsePoolID(data.PoolID)
	if err != nil {
		return Outcome{}, err
	}
	notional, err := parseBigInt(data.Notional)
	if err != nil {
		return Outcome{}, err
	}

	credited, err := a.engine.CollectPremium(poolID, notional)
	if err != nil {
		return Outcome{}, err
	}
	if credited.Amount == "0" {
		return Outcome{}, nil
	}
	credited.TxHash = txHash
	return Outcome{Premium: &credited}, nil
}

// ParseRecord resolves a replayed record's raw payload into the typed event
// the applier dispatches on.
func ParseRecord(record model.HookEventRecord) (*model.HookEvent, error) {
	event := &model.HookEvent{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		BlockHash:   record.BlockHash,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		EventName:   record.EventName,
		Timestamp:   record.Timestamp,
	}

	switch record.EventName {
	case "PoolActivated":
		var data model.PoolActivatedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", record.EventName, err)
		}
		event.Decoded = data
	case "PositionOpened":
		var data model.PositionOpenedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", record.EventName, err)
		}
		event.Decoded = data
	case "PositionModified":
		var data model.PositionModifiedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", record.EventName, err)
		}
		event.Decoded = data
	case "PositionClosed":
		var data model.PositionClosedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", record.EventName, err)
		}
		event.Decoded = data
	case "PremiumCollected":
		var data model.PremiumCollectedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", record.EventName, err)
		}
		event.Decoded = data
	default:
		return nil, fmt.Errorf("unsupported event name: %s", record.EventName)
	}

	return event, nil
}

func parsePoolID(value string) (common.Hash, error) {
	data, err := parseHexBytes(value, 32)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid pool id %q: %w", value, err)
	}
	return common.BytesToHash(data), nil
}

func parseProvider(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid provider address: %s", value)
	}
	return common.HexToAddress(value), nil
}

func parseHexBytes(value string, wantLen int) ([]byte, error) {
	data := common.FromHex(value)
	if len(data) != wantLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", wantLen, len(data))
	}
	return data, nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
