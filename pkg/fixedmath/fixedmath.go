// Package fixedmath collects the 256-bit fixed-point integer primitives shared
// by the V2 and V3 swap math packages. It generalizes the mulDiv/mulDivRoundingUp
// helpers that the source keeps as private, per-package methods on reusable
// scratch structs (see protocols/uniswapv3/calculator/swapmath and sqrtpricemath)
// into a single home, and adds the checked-overflow semantics the swap math
// contracts require. The overflow-checked multiply/divide itself runs on
// github.com/holiman/uint256 -- the same native 256-bit integer type
// go-ethereum uses for EVM words -- rather than a hand-rolled big.Int bound
// check, so a product that would wrap is caught by the type itself instead
// of by comparing against a hard-coded maximum.
package fixedmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when an intermediate product would not fit in 256 bits.
	ErrOverflow = errors.New("fixedmath: intermediate product exceeds 256 bits")
	// ErrDivideByZero is returned when a computed denominator is zero.
	ErrDivideByZero = errors.New("fixedmath: division by zero")

	// Q96 is the UQ64.96 fixed-point representation of 1.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Overflows256 reports whether x exceeds the representable range of an
// unsigned 256-bit integer.
func Overflows256(x *big.Int) bool {
	if x.Sign() < 0 {
		return true
	}
	_, overflow := uint256.FromBig(x)
	return overflow
}

// toUint256 converts a non-negative, 256-bit-representable *big.Int into a
// *uint256.Int, reporting ErrOverflow for anything that doesn't fit.
func toUint256(x *big.Int) (*uint256.Int, error) {
	if x.Sign() < 0 {
		return nil, ErrOverflow
	}
	u, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow
	}
	return u, nil
}

// MulDiv computes floor(a*b/c), returning ErrOverflow if the product a*b does
// not fit in 256 bits and ErrDivideByZero if c is zero. dest receives the
// result; dest may alias a scratch value owned by the caller.
func MulDiv(dest, a, b, c *big.Int) error {
	if c.Sign() == 0 {
		return ErrDivideByZero
	}
	ua, err := toUint256(a)
	if err != nil {
		return err
	}
	ub, err := toUint256(b)
	if err != nil {
		return err
	}
	uc, err := toUint256(c)
	if err != nil {
		return err
	}
	product, overflow := new(uint256.Int).MulOverflow(ua, ub)
	if overflow {
		return ErrOverflow
	}
	dest.Set(new(uint256.Int).Div(product, uc).ToBig())
	return nil
}

// MulDivRoundingUp computes ceil(a*b/c) with the same overflow/zero checks as MulDiv.
func MulDivRoundingUp(dest, a, b, c *big.Int) error {
	if c.Sign() == 0 {
		return ErrDivideByZero
	}
	ua, err := toUint256(a)
	if err != nil {
		return err
	}
	ub, err := toUint256(b)
	if err != nil {
		return err
	}
	uc, err := toUint256(c)
	if err != nil {
		return err
	}
	product, overflow := new(uint256.Int).MulOverflow(ua, ub)
	if overflow {
		return ErrOverflow
	}
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(product, uc, rem)
	if !rem.IsZero() {
		quo.Add(quo, uint256.NewInt(1))
	}
	dest.Set(quo.ToBig())
	return nil
}

// DivRoundingUp computes ceil(a/b).
func DivRoundingUp(dest, a, b *big.Int) error {
	if b.Sign() == 0 {
		return ErrDivideByZero
	}
	ua, err := toUint256(a)
	if err != nil {
		return err
	}
	ub, err := toUint256(b)
	if err != nil {
		return err
	}
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(ua, ub, rem)
	if !rem.IsZero() {
		quo.Add(quo, uint256.NewInt(1))
	}
	dest.Set(quo.ToBig())
	return nil
}

// CheckedMul multiplies a and b, returning ErrOverflow if the product would
// not fit in 256 bits.
func CheckedMul(a, b *big.Int) (*big.Int, error) {
	ua, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	ub, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(ua, ub)
	if overflow {
		return nil, ErrOverflow
	}
	return product.ToBig(), nil
}
