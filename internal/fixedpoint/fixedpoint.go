package fixedpoint

import (
	"errors"
	"math/big"
)

// ErrZeroDivisor is returned when a ratio denominator is zero.
var ErrZeroDivisor = errors.New("fixedpoint: zero divisor")

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// SqrtBig returns floor(sqrt(x)) using the Babylonian iteration seeded with
// (x+1)/2. The iterate decreases monotonically, so the loop stops as soon as
// a step no longer improves. Exact for every non-negative input.
func SqrtBig(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		return new(big.Int)
	}

	z := new(big.Int).Add(x, one)
	z.Div(z, two)
	y := new(big.Int).Set(x)

	for z.Cmp(y) < 0 {
		y.Set(z)
		z.Div(x, z)
		z.Add(z, y)
		z.Div(z, two)
	}
	return y
}

// ScaledRatio computes floor(a^2 * scale / b^2) without overflow. Inputs are
// not mutated.
func ScaledRatio(a, b, scale *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrZeroDivisor
	}
	num := new(big.Int).Mul(a, a)
	num.Mul(num, scale)
	den := new(big.Int).Mul(b, b)
	return num.Div(num, den), nil
}

// MulDiv computes floor(x * y / d).
func MulDiv(x, y, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, ErrZeroDivisor
	}
	out := new(big.Int).Mul(x, y)
	return out.Div(out, d), nil
}
