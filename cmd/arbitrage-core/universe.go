package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/flashroute/arbcore/pkg/catalog"
	"github.com/flashroute/arbcore/pkg/ingress"
	"github.com/flashroute/arbcore/pkg/poolstate"
	"github.com/flashroute/arbcore/pkg/tokenindex"
	"github.com/flashroute/arbcore/pkg/tokensafety"
	"github.com/flashroute/arbcore/protocols/tokenregistry"
)

// universeFile is the on-disk preloaded pool/token universe: the discovery
// process and RPC transport that would normally produce this are named as
// external collaborators out of scope (spec.md 1); this JSON file stands in
// for their output so the engine can bootstrap standalone.
type universeFile struct {
	Tokens []universeToken `json:"tokens"`
	Pools  []universePool  `json:"pools"`
}

type universeToken struct {
	Address       string `json:"address"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	Honeypot      bool   `json:"honeypot"`
	TransferTaxBP uint16 `json:"transferTaxBp"`
}

type universePool struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Kind    string `json:"kind"` // "v2" or "v3"
	FeeBps  uint16 `json:"feeBps"`

	// V2 preload.
	Reserve0 string `json:"reserve0,omitempty"`
	Reserve1 string `json:"reserve1,omitempty"`

	// V3 preload.
	SqrtPriceX96 string `json:"sqrtPriceX96,omitempty"`
	Liquidity    string `json:"liquidity,omitempty"`
	Tick         int64  `json:"tick,omitempty"`

	LiquidityProxy uint64 `json:"liquidityProxy,omitempty"`
}

// Universe is the fully assembled, build-once set of collaborators the
// engine evaluates against: the token/pool dense indices, the immutable
// route catalog, the preloaded pool-state cache, and the token-safety
// registry.
type Universe struct {
	Tokens   *tokenindex.Index
	Pools    *tokenindex.Index
	Catalog  *catalog.Catalog
	Cache    *poolstate.Cache
	Safety   *tokensafety.Registry
	PoolMeta map[uint64]ingress.PoolMeta
}

// loadUniverse reads path, assigns dense token/pool indices, builds the
// route catalog (bounded to maxHops, cyclic at baseTokens), and preloads
// the pool-state cache with each pool's starting reserves/price.
func loadUniverse(path string, maxHops int, baseTokens []string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("universe: reading %s: %w", path, err)
	}

	var uf universeFile
	if err := json.Unmarshal(data, &uf); err != nil {
		return nil, fmt.Errorf("universe: parsing %s: %w", path, err)
	}

	tokenBuilder := tokenindex.NewBuilder()
	safetyRecords := make(map[uint64]tokensafety.Record, len(uf.Tokens))
	for _, tok := range uf.Tokens {
		addr := common.HexToAddress(tok.Address)
		idx := tokenBuilder.Assign(addr)
		safetyRecords[idx] = tokenRecordFor(tokenregistry.Token{
			Address:       addr,
			Symbol:        tok.Symbol,
			Decimals:      tok.Decimals,
			Honeypot:      tok.Honeypot,
			TransferTaxBP: tok.TransferTaxBP,
		})
	}
	tokens, err := tokenBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}

	poolBuilder := tokenindex.NewBuilder()
	catalogBuilder := catalog.NewBuilder(maxHops)
	cache := poolstate.New()
	poolMeta := make(map[uint64]ingress.PoolMeta, len(uf.Pools))

	for _, p := range uf.Pools {
		poolID := poolBuilder.Assign(common.HexToAddress(p.Address))
		token0, ok0 := tokens.IndexOf(common.HexToAddress(p.Token0))
		token1, ok1 := tokens.IndexOf(common.HexToAddress(p.Token1))
		if !ok0 || !ok1 {
			return nil, fmt.Errorf("universe: pool %s references an unknown token", p.Address)
		}

		kind, err := parsePoolKind(p.Kind)
		if err != nil {
			return nil, fmt.Errorf("universe: pool %s: %w", p.Address, err)
		}

		if err := catalogBuilder.AddPool(catalog.PoolInput{
			PoolID: poolID, Token0: token0, Token1: token1, Kind: kind, LiquidityProxy: p.LiquidityProxy,
		}); err != nil {
			return nil, fmt.Errorf("universe: %w", err)
		}

		poolMeta[poolID] = ingress.PoolMeta{Token0: token0, Token1: token1, FeeBps: p.FeeBps}

		if err := preloadPoolState(cache, poolID, token0, token1, kind, p); err != nil {
			return nil, fmt.Errorf("universe: pool %s: %w", p.Address, err)
		}
	}

	pools, err := poolBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}

	baseIdx := make([]uint64, 0, len(baseTokens))
	for _, addr := range baseTokens {
		idx, ok := tokens.IndexOf(common.HexToAddress(addr))
		if !ok {
			return nil, fmt.Errorf("universe: base token %s not present in the token universe", addr)
		}
		baseIdx = append(baseIdx, idx)
	}
	catalogBuilder.SetBaseTokens(baseIdx)

	cat, err := catalogBuilder.Build()
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}

	return &Universe{
		Tokens:   tokens,
		Pools:    pools,
		Catalog:  cat,
		Cache:    cache,
		Safety:   tokensafety.NewRegistry(safetyRecords),
		PoolMeta: poolMeta,
	}, nil
}

func parsePoolKind(s string) (catalog.Kind, error) {
	switch strings.ToLower(s) {
	case "v2":
		return catalog.KindV2, nil
	case "v3":
		return catalog.KindV3, nil
	default:
		return 0, fmt.Errorf("unknown pool kind %q", s)
	}
}

func preloadPoolState(cache *poolstate.Cache, poolID, token0, token1 uint64, kind catalog.Kind, p universePool) error {
	switch kind {
	case catalog.KindV2:
		r0, ok := new(big.Int).SetString(p.Reserve0, 10)
		if !ok {
			return fmt.Errorf("invalid reserve0 %q", p.Reserve0)
		}
		r1, ok := new(big.Int).SetString(p.Reserve1, 10)
		if !ok {
			return fmt.Errorf("invalid reserve1 %q", p.Reserve1)
		}
		cache.Set(poolID, poolstate.State{
			Token0: token0, Token1: token1, Kind: poolstate.KindV2,
			FeeBps: p.FeeBps, Reserve0: r0, Reserve1: r1,
		})
	case catalog.KindV3:
		sqrtPrice, ok := new(big.Int).SetString(p.SqrtPriceX96, 10)
		if !ok {
			return fmt.Errorf("invalid sqrtPriceX96 %q", p.SqrtPriceX96)
		}
		liquidity, ok := new(big.Int).SetString(p.Liquidity, 10)
		if !ok {
			return fmt.Errorf("invalid liquidity %q", p.Liquidity)
		}
		cache.Set(poolID, poolstate.State{
			Token0: token0, Token1: token1, Kind: poolstate.KindV3,
			FeeBpsV3: p.FeeBps, SqrtPriceX96: sqrtPrice, Liquidity: liquidity, Tick: p.Tick,
		})
	}
	return nil
}

// tokenRecordFor maps a loaded tokenregistry.Token onto the tokensafety.Record
// the evaluator actually gates routes on.
func tokenRecordFor(tok tokenregistry.Token) tokensafety.Record {
	return tokensafety.Record{
		Honeypot:      tok.Honeypot,
		TransferTaxBP: tok.TransferTaxBP,
		Decimals:      tok.Decimals,
	}
}
