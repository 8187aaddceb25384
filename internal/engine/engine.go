package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/ilmath"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/pool"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/position"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/reserve"
)

var bpsDenominator = big.NewInt(10000)

// Engine orchestrates the close-time payout decision: position lifecycle,
// IL measurement, tolerance gating and reserve debits.
type Engine struct {
	pools     *pool.Registry
	positions *position.Tracker
	reserves  *reserve.Ledger
	logger    *zap.Logger
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	pools := pool.NewRegistry()
	return &Engine{
		pools:     pools,
		positions: position.NewTracker(pools, logger),
		reserves:  reserve.NewLedger(),
		logger:    logger,
	}
}

// ActivatePool registers a pool policy. Tolerance outside (0, 10000] and
// re-activation are configuration errors.
func (e *Engine) ActivatePool(poolID common.Hash, premiumRateBps, ilToleranceBps uint32) error {
	if err := e.pools.Activate(poolID, premiumRateBps, ilToleranceBps); err != nil {
		return err
	}
	e.logger.Info("pool activated",
		zap.String("pool_id", poolID.Hex()),
		zap.Uint32("premium_rate_bps", premiumRateBps),
		zap.Uint32("il_tolerance_bps", ilToleranceBps),
	)
	return nil
}

// DeactivatePool gates the pool off; lifecycle and premium operations on it
// fail afterwards.
func (e *Engine) DeactivatePool(poolID common.Hash) {
	e.pools.Deactivate(poolID)
}

// OpenPosition records a provider's entry state for later settlement.
func (e *Engine) OpenPosition(poolID common.Hash, provider common.Address, entrySqrtPrice, amount0, amount1 *big.Int, openedAt uint64) error {
	return e.positions.Open(poolID, provider, entrySqrtPrice, amount0, amount1, openedAt)
}

// RecordPartialChange acknowledges a partial liquidity change. Entry state
// is deliberately untouched: IL stays measured against the original entry.
func (e *Engine) RecordPartialChange(poolID common.Hash, provider common.Address) bool {
	return e.positions.RecordPartialChange(poolID, provider)
}

// CollectPremium charges the pool premium rate on a trade notional and
// credits it to the reserve.
func (e *Engine) CollectPremium(poolID common.Hash, notional *big.Int) (model.PremiumCredited, error) {
	cfg, err := e.pools.Require(poolID)
	if err != nil {
		return model.PremiumCredited{}, err
	}

	credited := e.reserves.CollectPremium(poolID, notional, cfg.PremiumRateBps)
	return model.PremiumCredited{
		PoolID: poolID.Hex(),
		Amount: credited.String(),
	}, nil
}

// Settle closes the provider's position and decides the compensation payout.
// Returns ok=false (no payout) when there is no position to settle, when the
// loss is within the pool tolerance, or when the reserve is empty. A zero
// price sample is an arithmetic failure; by then the position is already
// closed, so callers guard price samples before invoking Settle.
func (e *Engine) Settle(poolID common.Hash, provider common.Address, currentSqrtPrice, currentAmount0, currentAmount1 *big.Int) (model.PayoutInstruction, bool, error) {
	cfg, err := e.pools.Require(poolID)
	if err != nil {
		return model.PayoutInstruction{}, false, err
	}

	pos, ok := e.positions.Close(poolID, provider)
	if !ok {
		return model.PayoutInstruction{}, false, nil
	}

	ilBps, err := ilmath.FullIL(pos.EntrySqrtPrice, currentSqrtPrice, pos.EntryAmount0, pos.EntryAmount1, currentAmount0, currentAmount1)
	if err != nil {
		return model.PayoutInstruction{}, false, fmt.Errorf("settle %s/%s: %w", poolID.Hex(), provider.Hex(), err)
	}

	if ilBps <= uint64(cfg.ILToleranceBps) {
		e.logger.Debug("loss within tolerance",
			zap.String("pool_id", poolID.Hex()),
			zap.String("provider", provider.Hex()),
			zap.Uint64("il_bps", ilBps),
		)
		return model.PayoutInstruction{}, false, nil
	}

	raw := Compensation(ilBps, cfg.ILToleranceBps, currentAmount0)
	actual := e.reserves.Debit(poolID, raw)
	if actual.Sign() == 0 {
		return model.PayoutInstruction{}, false, nil
	}

	e.logger.Info("payout decided",
		zap.String("pool_id", poolID.Hex()),
		zap.String("provider", provider.Hex()),
		zap.Uint64("il_bps", ilBps),
		zap.String("raw", raw.String()),
		zap.String("actual", actual.String()),
	)

	return model.PayoutInstruction{
		PoolID:   poolID.Hex(),
		Provider: provider.Hex(),
		Amount:   actual.String(),
		ILBps:    ilBps,
	}, true, nil
}

// Compensation is the pre-clamp payout for an excess loss:
// floor(currentAmount0 * (ilBps - toleranceBps) / 10000). Only the loss
// above tolerance is compensated, never the full loss.
func Compensation(ilBps uint64, toleranceBps uint32, currentAmount0 *big.Int) *big.Int {
	if ilBps <= uint64(toleranceBps) {
		return new(big.Int)
	}
	excess := new(big.Int).SetUint64(ilBps - uint64(toleranceBps))
	excess.Mul(excess, currentAmount0)
	return excess.Div(excess, bpsDenominator)
}

// PoolConfig exposes the pool policy for external inspection.
func (e *Engine) PoolConfig(poolID common.Hash) (pool.Config, bool) {
	return e.pools.Get(poolID)
}

// ReserveBalance exposes the pool reserve balance.
func (e *Engine) ReserveBalance(poolID common.Hash) *big.Int {
	return e.reserves.Balance(poolID)
}

// Position exposes the active position for a key, if any.
func (e *Engine) Position(poolID common.Hash, provider common.Address) (position.Position, bool) {
	return e.positions.Get(poolID, provider)
}
