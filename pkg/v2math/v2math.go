// Package v2math implements constant-product (x*y=k) swap math, grounded on
// protocols/uniswapv2/calculator/calculator.go's GetAmountOut/GetAmountIn.
// The sync.Pool-of-scratch-big.Ints idiom is kept; the fee factor is taken as
// an explicit (numerator, denominator) pair per call rather than read from a
// hard-coded pool type, since a single process here juggles many distinct
// pool fees, and overflow is checked via fixedmath rather than left to grow
// big.Int without bound.
package v2math

import (
	"errors"
	"math/big"
	"sync"

	"github.com/flashroute/arbcore/pkg/fixedmath"
)

var (
	ErrZeroReserve           = errors.New("v2math: zero reserve")
	ErrZeroAmount            = errors.New("v2math: zero amount")
	ErrOverflow              = errors.New("v2math: overflow")
	ErrInsufficientLiquidity = errors.New("v2math: amount_out >= reserve_out")

	basisPointDivisor = big.NewInt(10000)
	one               = big.NewInt(1)
)

// scratch holds reusable big.Int temporaries, pooled the way the teacher's
// Calculator is pooled.
type scratch struct {
	amountInWithFee *big.Int
	numerator       *big.Int
	denominator     *big.Int
	numeratorIn     *big.Int
	denominatorIn   *big.Int
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			amountInWithFee: new(big.Int),
			numerator:       new(big.Int),
			denominator:     new(big.Int),
			numeratorIn:     new(big.Int),
			denominatorIn:   new(big.Int),
		}
	},
}

// AmountOut computes amount_out = (amount_in*f_num*R_out)/(R_in*f_den + amount_in*f_num),
// truncating division, in 256-bit unsigned arithmetic.
func AmountOut(amountIn, reserveIn, reserveOut, feeNum, feeDen *big.Int) (*big.Int, error) {
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrZeroReserve
	}
	if amountIn == nil || amountIn.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	if err := checkedMulInto(s.amountInWithFee, amountIn, feeNum); err != nil {
		return nil, err
	}
	if err := checkedMulInto(s.numerator, reserveOut, s.amountInWithFee); err != nil {
		return nil, err
	}
	if err := checkedMulInto(s.denominator, reserveIn, feeDen); err != nil {
		return nil, err
	}
	s.denominator.Add(s.denominator, s.amountInWithFee)
	if fixedmath.Overflows256(s.denominator) {
		return nil, ErrOverflow
	}
	if s.denominator.Sign() == 0 {
		return nil, ErrZeroReserve
	}

	return new(big.Int).Div(s.numerator, s.denominator), nil
}

// AmountIn computes the canonical rounding-up inverse:
// amount_in = (R_in*amount_out*f_den)/((R_out-amount_out)*f_num) + 1.
func AmountIn(amountOut, reserveIn, reserveOut, feeNum, feeDen *big.Int) (*big.Int, error) {
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrZeroReserve
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}

	s := scratchPool.Get().(*scratch)
	defer scratchPool.Put(s)

	if err := checkedMulInto(s.numeratorIn, reserveIn, amountOut); err != nil {
		return nil, err
	}
	if err := checkedMulInto(s.numeratorIn, s.numeratorIn, feeDen); err != nil {
		return nil, err
	}

	s.denominatorIn.Sub(reserveOut, amountOut)
	if err := checkedMulInto(s.denominatorIn, s.denominatorIn, feeNum); err != nil {
		return nil, err
	}
	if s.denominatorIn.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}

	amountIn := new(big.Int).Div(s.numeratorIn, s.denominatorIn)
	return amountIn.Add(amountIn, one), nil
}

// checkedMulInto writes a*b into dest, failing with ErrOverflow if the
// product would not fit in 256 bits.
func checkedMulInto(dest, a, b *big.Int) error {
	product, err := fixedmath.CheckedMul(a, b)
	if err != nil {
		if errors.Is(err, fixedmath.ErrOverflow) {
			return ErrOverflow
		}
		return err
	}
	dest.Set(product)
	return nil
}

// FeeFactor converts a pool's basis-points fee into the (numerator,
// denominator) pair the formulas above expect, e.g. 30bp -> (9970, 10000).
func FeeFactor(feeBps uint16) (num, den *big.Int) {
	return new(big.Int).Sub(basisPointDivisor, big.NewInt(int64(feeBps))), new(big.Int).Set(basisPointDivisor)
}
