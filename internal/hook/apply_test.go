package hook

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/engine"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/ilmath"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/model"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/pool"
)

const (
	sqrtPriceOneStr     = "79228162514264337593543950336"  // 2^96
	sqrtPriceDoubledStr = "158456325028528675187087900672" // 2^97
)

func newTestApplier() (*Applier, *engine.Engine) {
	eng := engine.New(nil)
	applier := NewApplier(eng, Defaults{PremiumRateBps: 2, ILToleranceBps: 100}, nil)
	return applier, eng
}

func activatedEvent(rate, tolerance uint32) *model.HookEvent {
	return &model.HookEvent{
		EventName: "PoolActivated",
		Decoded: model.PoolActivatedData{
			PoolID:         testPoolID.Hex(),
			PremiumRateBps: rate,
			ILToleranceBps: tolerance,
		},
	}
}

func openedEvent(timestamp uint64) *model.HookEvent {
	return &model.HookEvent{
		EventName: "PositionOpened",
		Timestamp: timestamp,
		Decoded: model.PositionOpenedData{
			PoolID:       testPoolID.Hex(),
			Provider:     testProvider.Hex(),
			SqrtPriceX96: sqrtPriceOneStr,
			Amount0:      "1000",
			Amount1:      "1000",
		},
	}
}

func closedEvent(sqrtPrice string) *model.HookEvent {
	return &model.HookEvent{
		EventName: "PositionClosed",
		TxHash:    "0xclose",
		Decoded: model.PositionClosedData{
			PoolID:       testPoolID.Hex(),
			Provider:     testProvider.Hex(),
			SqrtPriceX96: sqrtPrice,
			Amount0:      "500",
			Amount1:      "2000",
		},
	}
}

func premiumEvent(notional string) *model.HookEvent {
	return &model.HookEvent{
		EventName: "PremiumCollected",
		TxHash:    "0xpremium",
		Decoded: model.PremiumCollectedData{
			PoolID:   testPoolID.Hex(),
			Notional: notional,
		},
	}
}

func TestApplyLifecyclePayout(t *testing.T) {
	applier, eng := newTestApplier()

	if _, err := applier.Apply(activatedEvent(2, 100)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}
	if _, err := applier.Apply(openedEvent(1700000000)); err != nil {
		t.Fatalf("apply open: %v", err)
	}

	outcome, err := applier.Apply(premiumEvent("5000000"))
	if err != nil {
		t.Fatalf("apply premium: %v", err)
	}
	if outcome.Premium == nil {
		t.Fatal("premium outcome missing")
	}
	if outcome.Premium.Amount != "1000" {
		t.Fatalf("premium = %s, want 1000", outcome.Premium.Amount)
	}
	if outcome.Premium.TxHash != "0xpremium" {
		t.Fatalf("premium tx = %s", outcome.Premium.TxHash)
	}

	outcome, err = applier.Apply(closedEvent(sqrtPriceDoubledStr))
	if err != nil {
		t.Fatalf("apply close: %v", err)
	}
	if outcome.Payout == nil {
		t.Fatal("payout outcome missing")
	}
	if outcome.Payout.Amount != "494" || outcome.Payout.ILBps != 9999 {
		t.Fatalf("payout = %s at %d bps", outcome.Payout.Amount, outcome.Payout.ILBps)
	}
	if outcome.Payout.TxHash != "0xclose" {
		t.Fatalf("payout tx = %s", outcome.Payout.TxHash)
	}

	if bal := eng.ReserveBalance(testPoolID); bal.Int64() != 506 {
		t.Fatalf("reserve = %s, want 506", bal)
	}
}

func TestApplyActivationDefaults(t *testing.T) {
	applier, eng := newTestApplier()

	// Zero policy fields fall back to the configured defaults.
	if _, err := applier.Apply(activatedEvent(0, 0)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}

	cfg, ok := eng.PoolConfig(testPoolID)
	if !ok {
		t.Fatal("pool not registered")
	}
	if cfg.PremiumRateBps != 2 || cfg.ILToleranceBps != 100 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestApplyDuplicateActivation(t *testing.T) {
	applier, _ := newTestApplier()

	if _, err := applier.Apply(activatedEvent(2, 100)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}
	if _, err := applier.Apply(activatedEvent(5, 500)); !errors.Is(err, pool.ErrAlreadyActivated) {
		t.Fatalf("duplicate activation error = %v, want ErrAlreadyActivated", err)
	}
}

func TestApplyZeroPriceCloseRejected(t *testing.T) {
	applier, eng := newTestApplier()

	if _, err := applier.Apply(activatedEvent(2, 100)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}
	if _, err := applier.Apply(openedEvent(1)); err != nil {
		t.Fatalf("apply open: %v", err)
	}

	if _, err := applier.Apply(closedEvent("0")); !errors.Is(err, ilmath.ErrZeroPrice) {
		t.Fatalf("zero price close error = %v, want ErrZeroPrice", err)
	}
	// Rejected before settle, so the position stays open for a retry.
	if _, ok := eng.Position(testPoolID, testProvider); !ok {
		t.Fatal("position consumed by rejected close")
	}
}

func TestApplyCloseWithinToleranceNoOutcome(t *testing.T) {
	applier, _ := newTestApplier()

	if _, err := applier.Apply(activatedEvent(2, 10000)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}
	if _, err := applier.Apply(openedEvent(1)); err != nil {
		t.Fatalf("apply open: %v", err)
	}
	if _, err := applier.Apply(premiumEvent("5000000")); err != nil {
		t.Fatalf("apply premium: %v", err)
	}

	outcome, err := applier.Apply(closedEvent(sqrtPriceDoubledStr))
	if err != nil {
		t.Fatalf("apply close: %v", err)
	}
	if outcome.Payout != nil {
		t.Fatalf("payout within tolerance: %+v", outcome.Payout)
	}
}

func TestApplyPremiumTooSmallNoOutcome(t *testing.T) {
	applier, _ := newTestApplier()

	if _, err := applier.Apply(activatedEvent(2, 100)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}

	// floor(1000 * 2 / 10000) = 0, nothing to report.
	outcome, err := applier.Apply(premiumEvent("1000"))
	if err != nil {
		t.Fatalf("apply premium: %v", err)
	}
	if outcome.Premium != nil {
		t.Fatalf("zero premium reported: %+v", outcome.Premium)
	}
}

func TestApplyModifiedWithoutPosition(t *testing.T) {
	applier, _ := newTestApplier()

	if _, err := applier.Apply(activatedEvent(2, 100)); err != nil {
		t.Fatalf("apply activation: %v", err)
	}

	event := &model.HookEvent{
		EventName: "PositionModified",
		Decoded: model.PositionModifiedData{
			PoolID:         testPoolID.Hex(),
			Provider:       testProvider.Hex(),
			LiquidityDelta: "100",
		},
	}
	if _, err := applier.Apply(event); err != nil {
		t.Fatalf("apply modified without position: %v", err)
	}
}

func TestApplyUnsupportedPayload(t *testing.T) {
	applier, _ := newTestApplier()
	if _, err := applier.Apply(&model.HookEvent{Decoded: 42}); err == nil {
		t.Fatal("unsupported payload applied")
	}
}

func TestParseRecordRoundTrip(t *testing.T) {
	payload, err := json.Marshal(model.PositionOpenedData{
		PoolID:       testPoolID.Hex(),
		Provider:     testProvider.Hex(),
		SqrtPriceX96: sqrtPriceOneStr,
		Amount0:      "1000",
		Amount1:      "1000",
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	record := model.HookEventRecord{
		ChainID:     1,
		BlockNumber: 50,
		EventName:   "PositionOpened",
		Timestamp:   123,
		Decoded:     payload,
	}

	event, err := ParseRecord(record)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	data, ok := event.Decoded.(model.PositionOpenedData)
	if !ok {
		t.Fatalf("payload type %T", event.Decoded)
	}
	if data.Amount0 != "1000" || event.Timestamp != 123 {
		t.Fatalf("record context lost: %+v / %+v", data, event)
	}
}

func TestParseRecordUnknownEvent(t *testing.T) {
	record := model.HookEventRecord{
		EventName: "Mystery",
		Decoded:   json.RawMessage(`{}`),
	}
	if _, err := ParseRecord(record); err == nil {
		t.Fatal("unknown event parsed")
	}
}
