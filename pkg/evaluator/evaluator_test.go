package evaluator

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashroute/arbcore/pkg/catalog"
	"github.com/flashroute/arbcore/pkg/poolstate"
	"github.com/flashroute/arbcore/pkg/tokensafety"
)

const (
	tokU uint64 = 0
	tokW uint64 = 1
	tokX uint64 = 2
)

func bn(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad literal: " + s)
	}
	return n
}

func safeRegistry(tokens ...uint64) *tokensafety.Registry {
	records := make(map[uint64]tokensafety.Record, len(tokens))
	for _, t := range tokens {
		records[t] = tokensafety.Record{Decimals: 18}
	}
	return tokensafety.NewRegistry(records)
}

// buildCatalog constructs a 2-hop U<->X catalog with two parallel pools, A and B.
func buildCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	b := catalog.NewBuilder(2)
	b.SetBaseTokens([]uint64{tokU})
	require.NoError(t, b.AddPool(catalog.PoolInput{PoolID: 1, Token0: tokU, Token1: tokX, Kind: catalog.KindV2, LiquidityProxy: 100}))
	require.NoError(t, b.AddPool(catalog.PoolInput{PoolID: 2, Token0: tokU, Token1: tokX, Kind: catalog.KindV2, LiquidityProxy: 100}))
	cat, err := b.Build()
	require.NoError(t, err)
	return cat
}

func TestEvaluateFindsProfitableTriangle(t *testing.T) {
	cat := buildCatalog(t)
	cache := poolstate.New()
	// Pool A: cheap X (less U needed to buy X here).
	cache.Set(1, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 25,
		Reserve0: bn("100000000000000000000"), Reserve1: bn("99000000000000000000")})
	// Pool B: expensive X (more U returned when selling X here).
	cache.Set(2, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 25,
		Reserve0: bn("110000000000000000000"), Reserve1: bn("100000000000000000000")})

	ev := New(cat, cache, safeRegistry(tokU, tokX), Config{MinProfitThresholdBP: 0, SlippageBP: 0, Cores: 2}, nil, nil)
	opp := ev.Evaluate(context.Background(), 1, tokX, bn("1000000000000000000"))
	require.NotNil(t, opp)
	assert.Equal(t, tokX, opp.PivotToken)
	assert.True(t, opp.Best.Profit.Sign() > 0)
}

func TestEvaluateNoCandidatesForUnknownPool(t *testing.T) {
	cat := buildCatalog(t)
	cache := poolstate.New()
	ev := New(cat, cache, safeRegistry(tokU, tokX), Config{Cores: 1}, nil, nil)
	opp := ev.Evaluate(context.Background(), 999, tokX, bn("1"))
	assert.Nil(t, opp)
}

func TestEvaluateDropsUnsimulatablePools(t *testing.T) {
	cat := buildCatalog(t)
	cache := poolstate.New() // neither pool 1 nor 2 is ever Set.
	ev := New(cat, cache, safeRegistry(tokU, tokX), Config{Cores: 2}, nil, nil)
	opp := ev.Evaluate(context.Background(), 1, tokX, bn("1000000000000000000"))
	assert.Nil(t, opp)
}

func TestSelectBestTieBreaksByProfitThenIndex(t *testing.T) {
	a := &RouteResult{ProfitBP: 50, Profit: big.NewInt(10), RouteIdx: 1}
	b := &RouteResult{ProfitBP: 50, Profit: big.NewInt(20), RouteIdx: 0}
	c := &RouteResult{ProfitBP: 10, Profit: big.NewInt(1000), RouteIdx: 2}

	best := selectBest([]*RouteResult{a, b, c})
	assert.Same(t, b, best, "higher absolute profit should win the ProfitBP tie")
}

// TestEvaluateNoOpportunityOnPureLossCycle covers spec.md 8 scenario 1:
// identically priced pools on both legs of the cycle lose to fees alone, so
// no route should clear even a zero profit threshold.
func TestEvaluateNoOpportunityOnPureLossCycle(t *testing.T) {
	cat := buildCatalog(t)
	cache := poolstate.New()
	sameReserves := func(pool uint64) {
		cache.Set(pool, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 30,
			Reserve0: bn("100000000000000000000"), Reserve1: bn("100000000000000000000")})
	}
	sameReserves(1)
	sameReserves(2)

	ev := New(cat, cache, safeRegistry(tokU, tokX), Config{MinProfitThresholdBP: 0, SlippageBP: 0, Cores: 2}, nil, nil)
	opp := ev.Evaluate(context.Background(), 1, tokX, bn("1000000000000000000"))
	assert.Nil(t, opp, "round-tripping through identically priced pools should only ever lose to fees")
}

// TestEvaluateHandlesManyCandidatesWithinDeadline covers spec.md 8 scenario
// 5: a pool with a large number of candidate routes still evaluates well
// within a generous deadline and correctly finds the single profitable one.
func TestEvaluateHandlesManyCandidatesWithinDeadline(t *testing.T) {
	b := catalog.NewBuilder(2)
	b.SetBaseTokens([]uint64{tokU})
	const poolCount = 40
	for i := uint64(1); i <= poolCount; i++ {
		require.NoError(t, b.AddPool(catalog.PoolInput{PoolID: i, Token0: tokU, Token1: tokX, Kind: catalog.KindV2, LiquidityProxy: i}))
	}
	cat, err := b.Build()
	require.NoError(t, err)

	cache := poolstate.New()
	for i := uint64(1); i <= poolCount; i++ {
		cache.Set(i, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 30,
			Reserve0: bn("100000000000000000000"), Reserve1: bn("100000000000000000000")})
	}
	// Make exactly one pool favorable enough to turn the round trip profitable.
	cache.Set(1, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 25,
		Reserve0: bn("100000000000000000000"), Reserve1: bn("90000000000000000000")})

	ev := New(cat, cache, safeRegistry(tokU, tokX), Config{MinProfitThresholdBP: 0, SlippageBP: 0, DeadlineMS: 50, Cores: 4}, nil, nil)

	start := time.Now()
	opp := ev.Evaluate(context.Background(), 1, tokX, bn("1000000000000000000"))
	elapsed := time.Since(start)

	require.NotNil(t, opp, fmt.Sprintf("expected a profitable opportunity across %d candidates", poolCount))
	assert.LessOrEqual(t, elapsed, 100*time.Millisecond, "evaluation of a bounded candidate set should finish well within 2x its deadline")
}

// TestEvaluateReturnsNilOnExpiredContext confirms an already-cancelled
// context yields no opportunity instead of hanging or racing.
func TestEvaluateReturnsNilOnExpiredContext(t *testing.T) {
	cat := buildCatalog(t)
	cache := poolstate.New()
	cache.Set(1, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 25,
		Reserve0: bn("100000000000000000000"), Reserve1: bn("99000000000000000000")})
	cache.Set(2, poolstate.State{Token0: tokU, Token1: tokX, Kind: poolstate.KindV2, FeeBps: 25,
		Reserve0: bn("110000000000000000000"), Reserve1: bn("100000000000000000000")})

	ev := New(cat, cache, safeRegistry(tokU, tokX), Config{Cores: 2}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opp := ev.Evaluate(ctx, 1, tokX, bn("1000000000000000000"))
	assert.Nil(t, opp)
}

func TestSinkDropsOnFullChannelWithoutBlockingProducer(t *testing.T) {
	sink := NewSink(1, 1, nil, nil)
	sink.Send(&Opportunity{Pool: 1})
	// Second send should not block past its timeout even though the channel is full.
	sink.Send(&Opportunity{Pool: 2})
	select {
	case opp := <-sink.Opportunities():
		assert.Equal(t, uint64(1), opp.Pool)
	default:
		t.Fatal("expected the first opportunity to still be queued")
	}
}
