package ilmath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/DavidZSGao/uniswap-v4-il-insurance-hook/internal/fixedpoint"
)

// Scale is the fixed-point scale applied to price ratios (1e18).
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ErrZeroPrice is returned when a price sample or derived ratio degenerates
// to zero.
var ErrZeroPrice = errors.New("ilmath: zero price")

var bpsDenominator = big.NewInt(10000)

// PriceRatio computes the scaled squared ratio of the current sqrt price to
// the entry sqrt price: floor(current^2 * scale / entry^2).
func PriceRatio(currentSqrtPrice, entrySqrtPrice, scale *big.Int) (*big.Int, error) {
	ratio, err := fixedpoint.ScaledRatio(currentSqrtPrice, entrySqrtPrice, scale)
	if err != nil {
		return nil, ErrZeroPrice
	}
	return ratio, nil
}

// HodlValue is the value of holding the original amounts unchanged, re-priced
// at the current ratio and expressed in asset-0 units:
// sqrt(ratio)*amount0 + floor(scale^2/sqrt(ratio))*amount1.
func HodlValue(ratio, amount0, amount1, scale *big.Int) (*big.Int, error) {
	sqrtRatio := fixedpoint.SqrtBig(ratio)
	if sqrtRatio.Sign() == 0 {
		return nil, ErrZeroPrice
	}

	term0 := new(big.Int).Mul(sqrtRatio, amount0)
	inv := new(big.Int).Mul(scale, scale)
	inv.Div(inv, sqrtRatio)
	term1 := inv.Mul(inv, amount1)
	return term0.Add(term0, term1), nil
}

// LPValue is the value of the actual current holdings re-priced the same way:
// currentAmount0 + ratio*currentAmount1.
func LPValue(ratio, currentAmount0, currentAmount1 *big.Int) *big.Int {
	out := new(big.Int).Mul(ratio, currentAmount1)
	return out.Add(out, currentAmount0)
}

// LossBps converts a hodl/LP value pair into impermanent loss in basis
// points. Zero when the LP value keeps up with the hold baseline; never
// negative, never above 10000 for non-negative LP values.
func LossBps(hodlValue, lpValue *big.Int) uint64 {
	if hodlValue.Sign() == 0 || lpValue.Cmp(hodlValue) >= 0 {
		return 0
	}
	diff := new(big.Int).Sub(hodlValue, lpValue)
	diff.Mul(diff, bpsDenominator)
	diff.Div(diff, hodlValue)
	return diff.Uint64()
}

// FullIL composes the ratio, hodl, LP and bps steps at the default scale.
// All divisions floor toward zero; the result is deterministic for a given
// input set.
func FullIL(entrySqrtPrice, currentSqrtPrice, entryAmount0, entryAmount1, currentAmount0, currentAmount1 *big.Int) (uint64, error) {
	ratio, err := PriceRatio(currentSqrtPrice, entrySqrtPrice, Scale)
	if err != nil {
		return 0, fmt.Errorf("price ratio: %w", err)
	}
	hodl, err := HodlValue(ratio, entryAmount0, entryAmount1, Scale)
	if err != nil {
		return 0, fmt.Errorf("hodl value: %w", err)
	}
	lp := LPValue(ratio, currentAmount0, currentAmount1)
	return LossBps(hodl, lp), nil
}
