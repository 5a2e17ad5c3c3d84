// Package tokenindex assigns each token address a small dense integer index,
// generalizing the tokenToIndex/tokens slice pair from
// protocols/tokenpoolregistry/registry.go into a standalone, build-once
// component: the index is bijective and, once Build is called, immutable.
package tokenindex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrDuplicateAssignment is returned by Build if the same address was
// assigned more than one index, which would indicate a bug in the builder.
var ErrDuplicateAssignment = fmt.Errorf("tokenindex: duplicate index assignment")

// Builder accumulates address->index assignments during catalog build. It is
// not safe for concurrent use; the catalog build is expected to run
// single-threaded before the evaluator starts.
type Builder struct {
	addrToIdx map[common.Address]uint64
	idxToAddr []common.Address
}

// NewBuilder returns an empty token-index builder.
func NewBuilder() *Builder {
	return &Builder{addrToIdx: make(map[common.Address]uint64)}
}

// Assign returns the dense index for addr, assigning a new one on first sighting.
func (b *Builder) Assign(addr common.Address) uint64 {
	if idx, ok := b.addrToIdx[addr]; ok {
		return idx
	}
	idx := uint64(len(b.idxToAddr))
	b.addrToIdx[addr] = idx
	b.idxToAddr = append(b.idxToAddr, addr)
	return idx
}

// Len reports how many distinct addresses have been assigned so far.
func (b *Builder) Len() int {
	return len(b.idxToAddr)
}

// Build finalizes the assignment into an immutable Index.
func (b *Builder) Build() (*Index, error) {
	if len(b.addrToIdx) != len(b.idxToAddr) {
		return nil, ErrDuplicateAssignment
	}
	addrToIdx := make(map[common.Address]uint64, len(b.addrToIdx))
	for addr, idx := range b.addrToIdx {
		addrToIdx[addr] = idx
	}
	idxToAddr := make([]common.Address, len(b.idxToAddr))
	copy(idxToAddr, b.idxToAddr)
	return &Index{addrToIdx: addrToIdx, idxToAddr: idxToAddr}, nil
}

// Index is the immutable, bijective address<->index mapping produced by Build.
type Index struct {
	addrToIdx map[common.Address]uint64
	idxToAddr []common.Address
}

// IndexOf returns the dense index of addr, or ok=false if unknown.
func (ix *Index) IndexOf(addr common.Address) (uint64, bool) {
	idx, ok := ix.addrToIdx[addr]
	return idx, ok
}

// AddressOf returns the address assigned to idx, or ok=false if out of range.
func (ix *Index) AddressOf(idx uint64) (common.Address, bool) {
	if idx >= uint64(len(ix.idxToAddr)) {
		return common.Address{}, false
	}
	return ix.idxToAddr[idx], true
}

// Len reports the total number of distinct tokens indexed.
func (ix *Index) Len() int {
	return len(ix.idxToAddr)
}
