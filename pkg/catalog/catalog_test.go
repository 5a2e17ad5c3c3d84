package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Token indices used throughout: 0 is the base (quote) token.
const (
	tokA uint64 = 0
	tokB uint64 = 1
	tokC uint64 = 2
)

func TestBuildTriangle(t *testing.T) {
	b := NewBuilder(3)
	b.SetBaseTokens([]uint64{tokA})

	require.NoError(t, b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokB, Kind: KindV2, LiquidityProxy: 100}))
	require.NoError(t, b.AddPool(PoolInput{PoolID: 2, Token0: tokB, Token1: tokC, Kind: KindV3, LiquidityProxy: 50}))
	require.NoError(t, b.AddPool(PoolInput{PoolID: 3, Token0: tokC, Token1: tokA, Kind: KindV2, LiquidityProxy: 75}))

	cat, err := b.Build()
	require.NoError(t, err)
	// Every edge is usable in both directions, so the triangle yields one
	// route per direction of travel around it, plus the two 2-hop
	// out-and-back cycles A->B->A (pool 1) and A->C->A (pool 3).
	require.Equal(t, 4, cat.Len())

	routes := cat.RoutesTouchingToken(tokA)
	require.Len(t, routes, 4)
	var triangles []*Route
	for _, r := range routes {
		assert.Equal(t, tokA, r.Hops[0])
		assert.Equal(t, tokA, r.Hops[len(r.Hops)-1])
		if r.NumHops() == 3 {
			assert.ElementsMatch(t, []uint64{1, 2, 3}, r.Pools)
			triangles = append(triangles, r)
		} else {
			assert.Equal(t, 2, r.NumHops())
			assert.Equal(t, r.Pools[0], r.Pools[1])
		}
	}
	require.Len(t, triangles, 2)
	assert.NotEqual(t, triangles[0].Hops, triangles[1].Hops, "the two directions must be distinct routes")

	assert.Len(t, cat.RoutesTouchingPool(2), 2)
	assert.Nil(t, cat.RoutesTouchingPool(999), "unknown pool must yield nil, not an error")
}

func TestBuildExpandsParallelPools(t *testing.T) {
	b := NewBuilder(2)
	b.SetBaseTokens([]uint64{tokA})

	// Two parallel pools on the same A<->B pair: the edge in each direction
	// carries both pool choices, so the 2-hop A->B->A cycle is emitted once
	// per combination of (outbound pool, inbound pool) -- four routes.
	require.NoError(t, b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokB, Kind: KindV2, LiquidityProxy: 10}))
	require.NoError(t, b.AddPool(PoolInput{PoolID: 2, Token0: tokA, Token1: tokB, Kind: KindV3, LiquidityProxy: 20}))

	cat, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 4, cat.Len())

	routes := cat.RoutesTouchingToken(tokA)
	require.Len(t, routes, 4)
	seen := make(map[[2]uint64]bool)
	for _, r := range routes {
		require.Len(t, r.Pools, 2)
		assert.Equal(t, []uint64{tokA, tokB, tokA}, r.Hops)
		seen[[2]uint64{r.Pools[0], r.Pools[1]}] = true
	}
	assert.Len(t, seen, 4, "all four (outbound, inbound) pool combinations must appear exactly once")
}

func TestBuildSortsBucketsByLiquidityProxyDescending(t *testing.T) {
	b := NewBuilder(2)
	b.SetBaseTokens([]uint64{tokA})

	// Each token pair is served by exactly one pool, so each 2-hop cycle
	// (A->B->A and A->C->A) is a single route that uses its pool on both
	// hops. The low-liquidity A<->B pool should sort behind the
	// high-liquidity A<->C pool.
	require.NoError(t, b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokB, Kind: KindV2, LiquidityProxy: 1}))
	require.NoError(t, b.AddPool(PoolInput{PoolID: 2, Token0: tokA, Token1: tokC, Kind: KindV2, LiquidityProxy: 1000}))

	cat, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())

	routes := cat.RoutesTouchingToken(tokA)
	require.Len(t, routes, 2)
	assert.Equal(t, []uint64{2, 2}, routes[0].Pools, "higher-liquidity pool's cycle sorts first")
	assert.Equal(t, []uint64{1, 1}, routes[1].Pools)
}

func TestSplitAround(t *testing.T) {
	route := &Route{
		Hops:  []uint64{tokA, tokB, tokC, tokA},
		Pools: []uint64{1, 2, 3},
		Kinds: []Kind{KindV2, KindV3, KindV2},
	}

	buy, sell, ok := SplitAround(route, tokB)
	require.True(t, ok)
	assert.Equal(t, []uint64{tokA, tokB}, buy.Hops)
	assert.Equal(t, []uint64{1}, buy.Pools)
	assert.Equal(t, []uint64{tokB, tokC, tokA}, sell.Hops)
	assert.Equal(t, []uint64{2, 3}, sell.Pools)

	_, _, ok = SplitAround(route, 999)
	assert.False(t, ok, "pivot not on route must report no split")
}

func TestAddPoolRejectsSameToken(t *testing.T) {
	b := NewBuilder(2)
	err := b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokA, Kind: KindV2})
	require.ErrorIs(t, err, ErrSameToken)
}

func TestAddPoolRejectsKindMismatch(t *testing.T) {
	b := NewBuilder(2)
	require.NoError(t, b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokB, Kind: KindV2}))
	err := b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokB, Kind: KindV3})
	require.ErrorIs(t, err, ErrPoolKindMismatch)
}

func TestBuildRequiresBaseTokens(t *testing.T) {
	b := NewBuilder(2)
	_, err := b.Build()
	require.ErrorIs(t, err, ErrNoBaseTokens)
}

func TestBuildIgnoresMaxHopsBelowMinimum(t *testing.T) {
	b := NewBuilder(1)
	b.SetBaseTokens([]uint64{tokA})
	require.NoError(t, b.AddPool(PoolInput{PoolID: 1, Token0: tokA, Token1: tokB, Kind: KindV2}))

	cat, err := b.Build()
	require.NoError(t, err)
	// maxHops is clamped up to MinHops (2), so the 2-hop A->B->A cycle is
	// still found even though the caller asked for 1.
	assert.Equal(t, 1, cat.Len())
}
