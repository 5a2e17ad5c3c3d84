// Package v3math implements the single-tick concentrated-liquidity swap
// approximation. It reuses the source's swapmath.ComputeSwapStep and the
// sqrtpricemath package it calls directly -- both are already pure functions
// of (sqrtPrice, liquidity, amount, fee) with no dependency on a Pool type or
// on tick-crossing state -- and calls ComputeSwapStep exactly once instead of
// looping across tick boundaries the way protocols/uniswapv3/calculator.go's
// _swap did. The tick bitmap walk and liquidityNet bookkeeping that loop
// needed are dropped entirely, per the single-tick contract.
package v3math

import (
	"errors"
	"math/big"

	"github.com/flashroute/arbcore/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/flashroute/arbcore/protocols/uniswapv3/calculator/swapmath"
	"github.com/flashroute/arbcore/protocols/uniswapv3/calculator/tickmath"
)

var (
	ErrZeroLiquidity = errors.New("v3math: zero liquidity")
	ErrZeroSqrtPrice = errors.New("v3math: zero sqrt price")
	ErrOverflow      = errors.New("v3math: overflow")

	// feeBpsToPips converts a basis-points fee (denominator 10,000) to the
	// parts-per-million fee the source's swapmath package expects
	// (denominator 1,000,000): 1bp == 100ppm.
	feeBpsToPips = big.NewInt(100)
)

// Result is the outcome of a single-tick swap step.
type Result struct {
	AmountIn         *big.Int
	AmountOut        *big.Int
	FeeAmount        *big.Int
	NextSqrtPriceX96 *big.Int
}

// SwapExactIn runs a single-tick forward swap: given amountIn and the pool's
// current sqrtPriceX96/liquidity/feeBps, returns amountOut and the resulting
// sqrt price. zeroForOne indicates token0 is the input token. If
// sqrtPriceLimitX96 is nil, the protocol-wide MIN/MAX_SQRT_RATIO bound for
// the given direction is used -- the swap only ever moves within a single
// tick's liquidity, so in practice the step either fully consumes amountIn or
// is capped by the limit, never by a tick boundary.
func SwapExactIn(sqrtPriceX96, liquidity *big.Int, feeBps uint16, amountIn, sqrtPriceLimitX96 *big.Int, zeroForOne bool) (*Result, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, ErrZeroSqrtPrice
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, errors.New("v3math: amountIn must be positive")
	}

	limit := sqrtPriceLimitX96
	if limit == nil {
		if zeroForOne {
			limit = tickmath.MIN_SQRT_RATIO
		} else {
			limit = tickmath.MAX_SQRT_RATIO
		}
	}

	feePips := new(big.Int).Mul(big.NewInt(int64(feeBps)), feeBpsToPips)

	var (
		nextSqrtPrice = new(big.Int)
		stepAmountIn  = new(big.Int)
		stepAmountOut = new(big.Int)
		feeAmount     = new(big.Int)
	)

	target := limit
	if zeroForOne && limit.Cmp(sqrtPriceX96) >= 0 {
		target = sqrtpriceFloor(sqrtPriceX96)
	} else if !zeroForOne && limit.Cmp(sqrtPriceX96) <= 0 {
		target = sqrtpriceCeil(sqrtPriceX96)
	}

	err := swapmath.ComputeSwapStep(
		nextSqrtPrice, stepAmountIn, stepAmountOut, feeAmount,
		sqrtPriceX96, target, liquidity, new(big.Int).Set(amountIn), feePips,
	)
	if err != nil {
		return nil, translateErr(err)
	}

	return &Result{
		AmountIn:         stepAmountIn,
		AmountOut:        stepAmountOut,
		FeeAmount:        feeAmount,
		NextSqrtPriceX96: nextSqrtPrice,
	}, nil
}

// SwapExactOut runs the mirrored exact-output request: solve for the
// smallest amountIn producing at least amountOut, under the same
// single-tick assumption.
func SwapExactOut(sqrtPriceX96, liquidity *big.Int, feeBps uint16, amountOut, sqrtPriceLimitX96 *big.Int, zeroForOne bool) (*Result, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, ErrZeroSqrtPrice
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return nil, ErrZeroLiquidity
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, errors.New("v3math: amountOut must be positive")
	}

	limit := sqrtPriceLimitX96
	if limit == nil {
		if zeroForOne {
			limit = tickmath.MIN_SQRT_RATIO
		} else {
			limit = tickmath.MAX_SQRT_RATIO
		}
	}

	feePips := new(big.Int).Mul(big.NewInt(int64(feeBps)), feeBpsToPips)

	var (
		nextSqrtPrice = new(big.Int)
		stepAmountIn  = new(big.Int)
		stepAmountOut = new(big.Int)
		feeAmount     = new(big.Int)
	)

	// ComputeSwapStep treats a negative amountRemaining as an exact-output request.
	negatedOut := new(big.Int).Neg(amountOut)

	err := swapmath.ComputeSwapStep(
		nextSqrtPrice, stepAmountIn, stepAmountOut, feeAmount,
		sqrtPriceX96, limit, liquidity, negatedOut, feePips,
	)
	if err != nil {
		return nil, translateErr(err)
	}

	totalIn := new(big.Int).Add(stepAmountIn, feeAmount)
	return &Result{
		AmountIn:         totalIn,
		AmountOut:        stepAmountOut,
		FeeAmount:        feeAmount,
		NextSqrtPriceX96: nextSqrtPrice,
	}, nil
}

func translateErr(err error) error {
	switch {
	case errors.Is(err, sqrtpricemath.ErrLiquidityZero):
		return ErrZeroLiquidity
	case errors.Is(err, sqrtpricemath.ErrSqrtPriceZero):
		return ErrZeroSqrtPrice
	default:
		return ErrOverflow
	}
}

// sqrtpriceFloor/sqrtpriceCeil nudge the target price by one unit so that a
// caller-supplied limit equal to the current price (a degenerate input) does
// not produce a zero-width step; ComputeSwapStep treats current==target as a
// completed, zero-amount step otherwise.
func sqrtpriceFloor(p *big.Int) *big.Int {
	if p.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
		return new(big.Int).Set(tickmath.MIN_SQRT_RATIO)
	}
	return new(big.Int).Sub(p, big.NewInt(1))
}

func sqrtpriceCeil(p *big.Int) *big.Int {
	if p.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
		return new(big.Int).Set(tickmath.MAX_SQRT_RATIO)
	}
	return new(big.Int).Add(p, big.NewInt(1))
}
