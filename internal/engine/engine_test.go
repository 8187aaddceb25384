package engine

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/ilmath"
	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/pool"
)

var (
	testPool     = common.HexToHash("0x03")
	testProvider = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	// sqrt prices encoded Q64.96: price 1 and price 4 (sqrt doubled).
	sqrtPriceOne     = new(big.Int).Lsh(big.NewInt(1), 96)
	sqrtPriceDoubled = new(big.Int).Lsh(big.NewInt(1), 97)
)

func e18(n int64) *big.Int {
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return exp.Mul(exp, big.NewInt(n))
}

func TestCompensation(t *testing.T) {
	cases := []struct {
		name         string
		ilBps        uint64
		toleranceBps uint32
		amount0      *big.Int
		want         *big.Int
	}{
		{"excess 400 bps of 1000e18", 500, 100, e18(1000), e18(40)},
		{"at tolerance pays nothing", 100, 100, e18(1000), new(big.Int)},
		{"below tolerance pays nothing", 50, 100, e18(1000), new(big.Int)},
		{"floors toward zero", 9999, 100, big.NewInt(500), big.NewInt(494)},
		{"zero holdings", 500, 100, new(big.Int), new(big.Int)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compensation(tc.ilBps, tc.toleranceBps, tc.amount0)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("Compensation(%d, %d, %s) = %s, want %s",
					tc.ilBps, tc.toleranceBps, tc.amount0, got, tc.want)
			}
		})
	}
}

func TestSettlePaysExcessLoss(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// floor(5000000 * 2 / 10000) = 1000 into the reserve.
	credited, err := eng.CollectPremium(testPool, big.NewInt(5000000))
	if err != nil {
		t.Fatalf("CollectPremium: %v", err)
	}
	if credited.Amount != "1000" {
		t.Fatalf("credited %s, want 1000", credited.Amount)
	}

	// Price quadrupled: full IL is 9999 bps, tolerance 100, so the payout is
	// floor(500 * 9899 / 10000) = 494.
	payout, ok, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !ok {
		t.Fatal("Settle decided no payout")
	}
	if payout.ILBps != 9999 {
		t.Fatalf("ILBps = %d, want 9999", payout.ILBps)
	}
	if payout.Amount != "494" {
		t.Fatalf("payout amount = %s, want 494", payout.Amount)
	}
	if payout.PoolID != testPool.Hex() || payout.Provider != testProvider.Hex() {
		t.Fatalf("payout identity = %s/%s", payout.PoolID, payout.Provider)
	}

	if bal := eng.ReserveBalance(testPool); bal.Int64() != 506 {
		t.Fatalf("reserve after payout = %s, want 506", bal)
	}
	if _, ok := eng.Position(testPool, testProvider); ok {
		t.Fatal("position still active after settle")
	}
}

func TestSettleClampsToReserve(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// Reserve holds only 10; raw compensation of 494 is shorted, not owed.
	if _, err := eng.CollectPremium(testPool, big.NewInt(50000)); err != nil {
		t.Fatalf("CollectPremium: %v", err)
	}

	payout, ok, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !ok {
		t.Fatal("Settle decided no payout")
	}
	if payout.Amount != "10" {
		t.Fatalf("payout amount = %s, want 10", payout.Amount)
	}
	if bal := eng.ReserveBalance(testPool); bal.Sign() != 0 {
		t.Fatalf("reserve after clamp = %s, want 0", bal)
	}
}

func TestSettleEmptyReserveNoPayout(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	_, ok, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if ok {
		t.Fatal("payout from an empty reserve")
	}
	if _, ok := eng.Position(testPool, testProvider); ok {
		t.Fatal("position survived settle")
	}
}

func TestSettleWithinToleranceNoPayout(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 10000); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}
	if _, err := eng.CollectPremium(testPool, big.NewInt(5000000)); err != nil {
		t.Fatalf("CollectPremium: %v", err)
	}

	_, ok, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if ok {
		t.Fatal("payout for loss within tolerance")
	}
	if bal := eng.ReserveBalance(testPool); bal.Int64() != 1000 {
		t.Fatalf("reserve touched: %s", bal)
	}
}

func TestSettleZeroEntryAmountsNoLoss(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, new(big.Int), new(big.Int), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	// Nothing at entry means a zero hodl baseline, measured loss is zero.
	_, ok, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if ok {
		t.Fatal("payout for an empty entry position")
	}
}

func TestSettleNoPosition(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}

	_, ok, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if ok {
		t.Fatal("payout without an open position")
	}
}

func TestSettleUnregisteredPool(t *testing.T) {
	eng := New(nil)

	_, _, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if !errors.Is(err, pool.ErrNotRegistered) {
		t.Fatalf("Settle error = %v, want ErrNotRegistered", err)
	}
}

func TestSettleDeactivatedPoolLeavesPosition(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	eng.DeactivatePool(testPool)

	_, _, err := eng.Settle(testPool, testProvider, sqrtPriceDoubled, big.NewInt(500), big.NewInt(2000))
	if !errors.Is(err, pool.ErrNotRegistered) {
		t.Fatalf("Settle error = %v, want ErrNotRegistered", err)
	}
	// The gate fails before the close, so the position is not consumed.
	if _, ok := eng.Position(testPool, testProvider); !ok {
		t.Fatal("position lost on gated settle")
	}
}

func TestSettleZeroPriceFailsAfterClose(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	_, _, err := eng.Settle(testPool, testProvider, new(big.Int), big.NewInt(500), big.NewInt(2000))
	if !errors.Is(err, ilmath.ErrZeroPrice) {
		t.Fatalf("Settle error = %v, want ErrZeroPrice", err)
	}
	if _, ok := eng.Position(testPool, testProvider); ok {
		t.Fatal("position survived failed settle")
	}
}

func TestCollectPremiumUnregisteredPool(t *testing.T) {
	eng := New(nil)
	if _, err := eng.CollectPremium(testPool, big.NewInt(1000)); !errors.Is(err, pool.ErrNotRegistered) {
		t.Fatalf("CollectPremium error = %v, want ErrNotRegistered", err)
	}
}

func TestPartialChangeKeepsEntryBaseline(t *testing.T) {
	eng := New(nil)
	if err := eng.ActivatePool(testPool, 2, 100); err != nil {
		t.Fatalf("ActivatePool: %v", err)
	}
	if err := eng.OpenPosition(testPool, testProvider, sqrtPriceOne, big.NewInt(1000), big.NewInt(1000), 1); err != nil {
		t.Fatalf("OpenPosition: %v", err)
	}

	if !eng.RecordPartialChange(testPool, testProvider) {
		t.Fatal("partial change on active position reported missing")
	}

	pos, ok := eng.Position(testPool, testProvider)
	if !ok {
		t.Fatal("position missing after partial change")
	}
	if pos.EntrySqrtPrice.Cmp(sqrtPriceOne) != 0 || pos.EntryAmount0.Int64() != 1000 {
		t.Fatalf("partial change mutated entry: %+v", pos)
	}
}
