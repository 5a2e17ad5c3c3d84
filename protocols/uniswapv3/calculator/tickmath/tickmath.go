// Package tickmath carries the tick/sqrt-price bounds used to clamp a
// single-tick swap's price limit. The ratio-constant table and
// GetSqrtRatioAtTick/GetTickAtSqrtRatio binary search that the source uses to
// cross tick boundaries are dropped: the single-tick swap contract (see
// pkg/v3math) never needs to convert an arbitrary tick to a price, only to
// clamp against the protocol-wide min/max.
package tickmath

import "math/big"

var (
	// MIN_TICK is the minimum tick representable by the protocol.
	MIN_TICK = int64(-887272)
	// MAX_TICK is the maximum tick representable by the protocol.
	MAX_TICK = int64(887272)

	// MIN_SQRT_RATIO is the minimum valid sqrt-price, i.e. the price at MIN_TICK.
	MIN_SQRT_RATIO, _ = new(big.Int).SetString("4295128739", 10)
	// MAX_SQRT_RATIO is the maximum valid sqrt-price, i.e. the price at MAX_TICK.
	MAX_SQRT_RATIO, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)
