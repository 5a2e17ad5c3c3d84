// Package tokensafety gates route simulation on a per-token honeypot/tax
// classification. It generalizes protocols/tokenregistry/token.go's Token
// struct, replacing the FeeOnTransferPercent float with an exact
// transfer-tax-in-basis-points field and adding the honeypot flag the route
// eligibility rule needs.
package tokensafety

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// MaxSafeTransferTaxBP is the exclusive upper bound on transfer tax for a
// token to still be considered route-eligible (50%).
const MaxSafeTransferTaxBP = 5000

// Record is the safety classification for a single token index.
type Record struct {
	Honeypot      bool
	TransferTaxBP uint16
	Decimals      uint8
}

// Safe reports whether the record alone qualifies a token for route
// simulation, independent of registry membership.
func (r Record) Safe() bool {
	return !r.Honeypot && r.TransferTaxBP < MaxSafeTransferTaxBP
}

// Registry is the shared-immutable-after-load token-safety map. It is built
// once (typically alongside catalog build, from the same preloaded token
// universe) and read concurrently by every evaluator goroutine thereafter.
type Registry struct {
	records map[uint64]Record
	safe    mapset.Set[uint64]
}

// NewRegistry builds a Registry from a snapshot of per-token records. The
// known-safe set is computed once, up front, so IsSafe is a single set
// membership check on the hot path rather than a map lookup plus field checks.
func NewRegistry(records map[uint64]Record) *Registry {
	frozen := make(map[uint64]Record, len(records))
	safe := mapset.NewThreadUnsafeSet[uint64]()
	for idx, rec := range records {
		frozen[idx] = rec
		if rec.Safe() {
			safe.Add(idx)
		}
	}
	return &Registry{records: frozen, safe: safe}
}

// IsSafe reports whether tokenIdx is both known and classified safe. An
// unknown token is never safe: absence is conservative here, unlike the
// pool-state cache's "treat as unsimulatable and skip" rule it otherwise
// mirrors.
func (r *Registry) IsSafe(tokenIdx uint64) bool {
	return r.safe.Contains(tokenIdx)
}

// Get returns the raw record for tokenIdx, if known.
func (r *Registry) Get(tokenIdx uint64) (Record, bool) {
	rec, ok := r.records[tokenIdx]
	return rec, ok
}

// RouteSafe reports whether every token index in hops is known-safe.
func (r *Registry) RouteSafe(hops []uint64) bool {
	for _, idx := range hops {
		if !r.IsSafe(idx) {
			return false
		}
	}
	return true
}
