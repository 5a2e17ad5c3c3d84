// Package poolstate implements the pool-state cache: the single source of
// truth the evaluator reads during simulation. It generalizes the
// "sync.RWMutex for structural writes, atomic.Pointer for lock-free reads"
// idiom from protocols/tokenpoolregistry/system.go (TokenPoolSystem) from a
// whole-graph snapshot to a per-pool snapshot, since the cache's contract
// ("a concurrent get returns either strictly the pre-image or strictly the
// post-image") is naturally a per-key atomic replacement, not a global one.
package poolstate

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"
)

// Kind distinguishes the AMM family a pool belongs to.
type Kind uint8

const (
	KindV2 Kind = iota
	KindV3
)

// State is the full, immutable-once-stored snapshot of a pool. A State value
// must never be mutated after it is handed to Cache.Set; callers that derive
// a new State from an old one must copy every *big.Int field.
type State struct {
	Token0, Token1 uint64
	Kind           Kind

	// V2 fields.
	Reserve0, Reserve1 *big.Int
	FeeBps             uint16

	// V3 fields.
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int64
	FeeBpsV3     uint16

	UpdatedAt time.Time
}

// Clone returns a deep copy of the state, safe for the caller to mutate.
func (s State) Clone() State {
	c := s
	if s.Reserve0 != nil {
		c.Reserve0 = new(big.Int).Set(s.Reserve0)
	}
	if s.Reserve1 != nil {
		c.Reserve1 = new(big.Int).Set(s.Reserve1)
	}
	if s.SqrtPriceX96 != nil {
		c.SqrtPriceX96 = new(big.Int).Set(s.SqrtPriceX96)
	}
	if s.Liquidity != nil {
		c.Liquidity = new(big.Int).Set(s.Liquidity)
	}
	return c
}

// Simulatable reports whether the state carries enough information to be
// used as an input to the swap math: non-zero reserves for V2, non-zero
// sqrt-price and liquidity for V3.
func (s State) Simulatable() bool {
	switch s.Kind {
	case KindV2:
		return s.Reserve0 != nil && s.Reserve1 != nil && s.Reserve0.Sign() > 0 && s.Reserve1.Sign() > 0
	case KindV3:
		return s.SqrtPriceX96 != nil && s.Liquidity != nil && s.SqrtPriceX96.Sign() > 0 && s.Liquidity.Sign() > 0
	default:
		return false
	}
}

// Cache is the pool-state cache. Its zero value is not usable; construct
// with New. The only writer is expected to be the event dispatcher; readers
// are evaluator goroutines. Every Get and Set takes mu's read lock briefly to
// look up the pool's slot, and mu's write lock only to create a new slot; the
// state itself is loaded and replaced through the slot's atomic pointer.
type Cache struct {
	mu    sync.RWMutex
	slots map[uint64]*atomic.Pointer[State]
}

// New returns an empty pool-state cache.
func New() *Cache {
	return &Cache{slots: make(map[uint64]*atomic.Pointer[State])}
}

func (c *Cache) slot(pool uint64, create bool) *atomic.Pointer[State] {
	c.mu.RLock()
	s, ok := c.slots[pool]
	c.mu.RUnlock()
	if ok || !create {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.slots[pool]; ok {
		return s
	}
	s = new(atomic.Pointer[State])
	c.slots[pool] = s
	return s
}

// Get returns a consistent snapshot of the pool's last-known state. The
// second return value is false if the pool has never been set ("absent" in
// the error taxonomy) -- callers treat this as "route not simulatable" and skip.
func (c *Cache) Get(pool uint64) (State, bool) {
	s := c.slot(pool, false)
	if s == nil {
		return State{}, false
	}
	p := s.Load()
	if p == nil {
		return State{}, false
	}
	return *p, true
}

// Set replaces the current state for pool with state. A concurrent Get
// returns either strictly the pre-image or strictly the post-image: the
// pointer swap below is the only write, and Get only ever dereferences a
// pointer it has already loaded.
func (c *Cache) Set(pool uint64, state State) {
	snapshot := state.Clone()
	snapshot.UpdatedAt = time.Now()
	c.slot(pool, true).Store(&snapshot)
}

// UpdateV2Reserves composes a new snapshot from the current one with updated
// V2 reserves and stores it atomically. If the pool is absent, a fresh V2
// state is created.
func (c *Cache) UpdateV2Reserves(pool, token0, token1 uint64, feeBps uint16, r0, r1 *big.Int) State {
	next := State{
		Token0:   token0,
		Token1:   token1,
		Kind:     KindV2,
		FeeBps:   feeBps,
		Reserve0: r0,
		Reserve1: r1,
	}
	if prev, ok := c.Get(pool); ok {
		next.Token0, next.Token1 = prev.Token0, prev.Token1
		if feeBps == 0 {
			next.FeeBps = prev.FeeBps
		}
	}
	c.Set(pool, next)
	snapshot, _ := c.Get(pool)
	return snapshot
}

// UpdateV3State composes a new snapshot from the current one with updated V3
// price/liquidity/tick and stores it atomically.
func (c *Cache) UpdateV3State(pool, token0, token1 uint64, feeBps uint16, sqrtPriceX96, liquidity *big.Int, tick int64) State {
	next := State{
		Token0:       token0,
		Token1:       token1,
		Kind:         KindV3,
		FeeBpsV3:     feeBps,
		SqrtPriceX96: sqrtPriceX96,
		Liquidity:    liquidity,
		Tick:         tick,
	}
	if prev, ok := c.Get(pool); ok {
		next.Token0, next.Token1 = prev.Token0, prev.Token1
		if feeBps == 0 {
			next.FeeBpsV3 = prev.FeeBpsV3
		}
	}
	c.Set(pool, next)
	snapshot, _ := c.Get(pool)
	return snapshot
}

// Len returns the number of pools currently tracked.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slots)
}
