// Package catalog builds and serves the route catalog: the precomputed index
// from token identity and pool identity to the cyclic trading routes that
// touch them. Build time is adapted directly from
// protocols/tokenpoolregistry's clique-building adjacency graph
// (TokenPoolSystem/TokenPoolRegistry): AddPool here feeds straight into that
// graph's add(), and Build walks the resulting adjacency/edgeTargets/
// edgePools view with a depth-bounded DFS instead of maintaining its own
// graph representation from scratch. Runtime lookups are plain map/slice
// reads over the immutable result, matching the registry's own
// shared-immutable-after-build posture for its View.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/flashroute/arbcore/bitset"
	"github.com/flashroute/arbcore/protocols/tokenpoolregistry"
)

// Kind re-exports the registry's AMM-family tag so callers of this package
// never need to import tokenpoolregistry directly.
type Kind = tokenpoolregistry.PoolKind

const (
	KindV2 = tokenpoolregistry.PoolKindV2
	KindV3 = tokenpoolregistry.PoolKindV3
)

var (
	ErrSameToken        = errors.New("catalog: pool token0 equals token1")
	ErrPoolKindMismatch = errors.New("catalog: pool re-added with a different kind")
	ErrNoBaseTokens     = errors.New("catalog: build called with no base tokens")
)

// MinHops and MaxHopsCeiling bound the hop depths the DFS will enumerate;
// the source supports 2- and 3-hop cycles, and this core extends to 4.
const (
	MinHops        = 2
	MaxHopsCeiling = 4
)

// Route is a cyclic trading path: hops[0] == hops[len(hops)-1] is the base
// token, pools[i] trades hops[i] for hops[i+1], and kinds[i] is pools[i]'s
// AMM family. Routes are immutable once returned from Build.
type Route struct {
	Hops  []uint64
	Pools []uint64
	Kinds []Kind
}

// NumHops reports the number of swaps the route performs.
func (r *Route) NumHops() int {
	return len(r.Pools)
}

// PoolInput is one known pool, supplied to the builder in terms of dense
// token indices (see pkg/tokenindex) rather than raw addresses.
type PoolInput struct {
	PoolID         uint64
	Token0, Token1 uint64
	Kind           Kind
	// LiquidityProxy is a caller-supplied ordering hint (e.g. a reserve
	// magnitude or TVL estimate) used only to sort catalog buckets so the
	// most promising routes are tried first; it has no effect on
	// correctness.
	LiquidityProxy uint64
}

// Builder accumulates pools and base tokens during catalog construction. Not
// safe for concurrent use; build is expected to run single-threaded before
// the evaluator starts.
type Builder struct {
	system     *tokenpoolregistry.TokenPoolSystem
	liquidity  map[uint64]uint64
	baseTokens []uint64
	maxHops    int
}

// NewBuilder returns an empty catalog builder bounded to maxHops swaps per
// route (clamped to [MinHops, MaxHopsCeiling]).
func NewBuilder(maxHops int) *Builder {
	if maxHops < MinHops {
		maxHops = MinHops
	}
	if maxHops > MaxHopsCeiling {
		maxHops = MaxHopsCeiling
	}
	return &Builder{
		system:    tokenpoolregistry.NewTokenPoolSystem(0),
		liquidity: make(map[uint64]uint64),
		maxHops:   maxHops,
	}
}

// SetBaseTokens records the designated quote tokens every route must start
// and end at.
func (b *Builder) SetBaseTokens(tokens []uint64) {
	b.baseTokens = append([]uint64(nil), tokens...)
}

// AddPool registers a pool's token pair and AMM kind. Re-adding the same
// pool ID with a different kind is a build-time error.
func (b *Builder) AddPool(p PoolInput) error {
	if p.Token0 == p.Token1 {
		return fmt.Errorf("%w: pool %d", ErrSameToken, p.PoolID)
	}
	if existingKind, ok := b.system.PoolKind(p.PoolID); ok && existingKind != p.Kind {
		return fmt.Errorf("%w: pool %d", ErrPoolKindMismatch, p.PoolID)
	}
	b.system.AddPool([]uint64{p.Token0, p.Token1}, p.PoolID, p.Kind)
	b.liquidity[p.PoolID] = p.LiquidityProxy
	return nil
}

// Build enumerates every cyclic route of length in [MinHops, maxHops]
// starting and ending at a base token, with no repeated intermediate token
// and every consecutive pair connected by at least one known pool, then
// builds the by_token/by_pool inverted indexes sorted descending by a
// liquidity proxy.
func (b *Builder) Build() (*Catalog, error) {
	if len(b.baseTokens) == 0 {
		return nil, ErrNoBaseTokens
	}

	view := b.system.View()
	tokenToInternal := make(map[uint64]int, len(view.Tokens))
	for i, tokenID := range view.Tokens {
		tokenToInternal[tokenID] = i
	}

	var routes []*Route
	visited := bitset.NewBitSet(uint64(len(view.Tokens)))
	for _, base := range b.baseTokens {
		baseInternal, ok := tokenToInternal[base]
		if !ok {
			continue // a base token with no registered pools contributes no routes
		}
		w := &walker{
			view:         view,
			baseInternal: baseInternal,
			maxHops:      b.maxHops,
			visited:      visited,
		}
		w.visited.Clear()
		w.visited.Set(uint64(baseInternal))
		w.walk(baseInternal, []int{baseInternal}, nil, func(tokenPath []int, poolChoices [][]int) {
			routes = append(routes, expandRoutes(view, tokenPath, poolChoices)...)
		})
	}

	byToken := make(map[uint64][]*Route)
	byPool := make(map[uint64][]*Route)
	for _, r := range routes {
		// The last hop repeats the base token, so it is skipped to index
		// each route once per token.
		for _, tok := range r.Hops[:len(r.Hops)-1] {
			byToken[tok] = append(byToken[tok], r)
		}
		for i, pool := range r.Pools {
			seen := false
			for _, prev := range r.Pools[:i] {
				if prev == pool {
					seen = true
					break
				}
			}
			if !seen {
				byPool[pool] = append(byPool[pool], r)
			}
		}
	}

	proxyOf := func(r *Route) uint64 {
		var sum uint64
		for _, pool := range r.Pools {
			sum += b.liquidity[pool]
		}
		return sum
	}
	for _, bucket := range byToken {
		sortRoutesDescending(bucket, proxyOf)
	}
	for _, bucket := range byPool {
		sortRoutesDescending(bucket, proxyOf)
	}

	return &Catalog{routes: routes, byToken: byToken, byPool: byPool}, nil
}

func sortRoutesDescending(routes []*Route, proxyOf func(*Route) uint64) {
	sort.SliceStable(routes, func(i, j int) bool {
		return proxyOf(routes[i]) > proxyOf(routes[j])
	})
}

// walker performs the depth-bounded cycle-enumeration DFS. path and
// poolChoices are reused across recursive calls (classic push/pop
// backtracking); visited marks internal token indices already on the
// current path so no intermediate token repeats.
type walker struct {
	view         *tokenpoolregistry.TokenPoolRegistryView
	baseInternal int
	maxHops      int
	visited      bitset.BitSet
}

func (w *walker) walk(current int, path []int, poolChoices [][]int, emit func(tokenPath []int, poolChoices [][]int)) {
	hops := len(poolChoices)
	if hops > 0 && current == w.baseInternal {
		// Closed back on the base token: the route is complete. Never
		// extend past it, or the base would reappear as an intermediate hop.
		if hops >= MinHops {
			emit(path, poolChoices)
		}
		return
	}
	if hops >= w.maxHops {
		return
	}

	for _, edgeIdx := range w.view.Adjacency[current] {
		next := w.view.EdgeTargets[edgeIdx]
		pools := w.view.EdgePools[edgeIdx]
		if len(pools) == 0 {
			continue
		}
		if next != w.baseInternal && w.visited.IsSet(uint64(next)) {
			continue
		}

		if next != w.baseInternal {
			w.visited.Set(uint64(next))
		}
		w.walk(next, append(path, next), append(poolChoices, pools), emit)
		if next != w.baseInternal {
			w.visited.Unset(uint64(next))
		}
	}
}

// expandRoutes turns one token-path/edge-pool-options walk into one Route
// per concrete combination of pools along the path, per the catalog's
// contract that every pool combination is a distinct route.
func expandRoutes(view *tokenpoolregistry.TokenPoolRegistryView, tokenPath []int, poolChoices [][]int) []*Route {
	hops := make([]uint64, len(tokenPath))
	for i, internal := range tokenPath {
		hops[i] = view.Tokens[internal]
	}

	var out []*Route
	combo := make([]int, len(poolChoices))
	var recurse func(depth int)
	recurse = func(depth int) {
		if depth == len(poolChoices) {
			pools := make([]uint64, len(combo))
			kinds := make([]Kind, len(combo))
			for i, poolInternal := range combo {
				poolID := view.Pools[poolInternal]
				pools[i] = poolID
				kinds[i] = view.PoolKinds[poolID]
			}
			out = append(out, &Route{
				Hops:  append([]uint64(nil), hops...),
				Pools: pools,
				Kinds: kinds,
			})
			return
		}
		for _, poolInternal := range poolChoices[depth] {
			combo[depth] = poolInternal
			recurse(depth + 1)
		}
	}
	recurse(0)
	return out
}

// Catalog is the immutable, built route index.
type Catalog struct {
	routes  []*Route
	byToken map[uint64][]*Route
	byPool  map[uint64][]*Route
}

// RoutesTouchingToken returns every route whose hops include tokenIdx, in
// descending liquidity-proxy order. Nil (not an error) if unknown.
func (c *Catalog) RoutesTouchingToken(tokenIdx uint64) []*Route {
	return c.byToken[tokenIdx]
}

// RoutesTouchingPool returns every route whose pools include poolID, in
// descending liquidity-proxy order. Nil (not an error) if unknown.
func (c *Catalog) RoutesTouchingPool(poolID uint64) []*Route {
	return c.byPool[poolID]
}

// Len reports the total number of distinct routes in the catalog.
func (c *Catalog) Len() int {
	return len(c.routes)
}

// SplitAround splits route at the first index k where hops[k] == pivot into
// a buy leg (base -> pivot) and a sell leg (pivot -> base). ok is false if
// the pivot is not on the route.
func SplitAround(route *Route, pivot uint64) (buyLeg, sellLeg *Route, ok bool) {
	k := -1
	for i, h := range route.Hops {
		if h == pivot {
			k = i
			break
		}
	}
	if k < 0 {
		return nil, nil, false
	}
	buyLeg = &Route{
		Hops:  route.Hops[:k+1],
		Pools: route.Pools[:k],
		Kinds: route.Kinds[:k],
	}
	sellLeg = &Route{
		Hops:  route.Hops[k:],
		Pools: route.Pools[k:],
		Kinds: route.Kinds[k:],
	}
	return buyLeg, sellLeg, true
}
