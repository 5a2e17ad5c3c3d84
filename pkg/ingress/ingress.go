// Package ingress implements the event dispatcher of spec.md 4.6: it reads
// line-delimited JSON records from the wire format of spec.md 6, classifies
// each into a closed tagged variant, mutates the pool-state cache, and
// enqueues an evaluation task. The reconnect loop is adapted from
// streams/jsonrpc/client/client.go's Client.run/subscribeAndProcess -- same
// exponential-backoff shape and Logger interface -- re-pointed from an
// ethereum/go-ethereum RPC subscription at a raw line reader over the
// net.Conn the wire format describes, and enriched with a jittered
// golang.org/x/time/rate gate on the backoff sleep per SPEC_FULL.md.
package ingress

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/flashroute/arbcore/pkg/poolstate"
	"github.com/flashroute/arbcore/pkg/tokenindex"
)

// Logger defines a standard interface for structured, leveled logging,
// re-declared per package as client.Logger/differ.Logger are in the teacher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Reconnection backoff bounds, matching streams/jsonrpc/client/client.go's
// initialReconnectDelay/maxReconnectDelay constants.
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

const (
	eventSyncV2        = "SyncV2"
	eventSwapV3        = "SwapV3"
	eventPancakeSwapV3 = "PancakeSwapV3"
)

var (
	ErrMalformed = errors.New("ingress: malformed record")
)

// record is the closed tagged-variant wire shape of spec.md 6: one struct
// covers every event_type, with kind-specific fields left as raw JSON so
// each handler parses only what it needs.
type record struct {
	EventType string `json:"event_type"`

	Address string `json:"address"`

	// SyncV2 fields.
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
	TxHash   string `json:"tx_hash"`

	// SwapV3/PancakeSwapV3 fields.
	SqrtPriceX96 json.RawMessage `json:"sqrt_price_x96"`
	Liquidity    json.RawMessage `json:"liquidity"`
	Tick         json.RawMessage `json:"tick"`
	Amount0      *string         `json:"amount0"`
	Amount1      *string         `json:"amount1"`
	Token0       *string         `json:"token0"`
	Token1       *string         `json:"token1"`
}

// Task is the (pool, pivot_token, pivot_amount) tuple the dispatcher hands
// off to the evaluator, per spec.md 4.6.
type Task struct {
	Pool        uint64
	PivotToken  uint64
	PivotAmount *big.Int
}

// PoolMeta is the dispatcher's lookup of static, preloaded per-pool facts
// (the token pair and fee) it needs to interpret an update record; spec.md
// scopes "pool universe known, reserves preloaded" as an external
// collaborator, so this is populated once at startup and read thereafter.
type PoolMeta struct {
	Token0, Token1 uint64
	FeeBps         uint16
}

// Dispatcher consumes the event stream and drives cache mutations plus task
// enqueues. It is the single reader/writer of the cache; evaluator
// goroutines only ever read it.
type Dispatcher struct {
	cache    *poolstate.Cache
	pools    *tokenindex.Index // address -> dense pool id
	tokens   *tokenindex.Index // address -> dense token id
	poolMeta map[uint64]PoolMeta
	tasks    chan Task
	logger   Logger
	metrics  *Metrics
}

// NewDispatcher constructs a Dispatcher. poolMeta must contain an entry for
// every pool the catalog was built with; a record for an unknown pool still
// updates nothing and is simply skipped (Absent, per spec.md 7).
func NewDispatcher(cache *poolstate.Cache, pools, tokens *tokenindex.Index, poolMeta map[uint64]PoolMeta, taskBuffer int, logger Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		cache:    cache,
		pools:    pools,
		tokens:   tokens,
		poolMeta: poolMeta,
		tasks:    make(chan Task, taskBuffer),
		logger:   logger,
		metrics:  metrics,
	}
}

// Tasks returns the read-only channel of evaluation tasks.
func (d *Dispatcher) Tasks() <-chan Task {
	return d.tasks
}

// Run connects via dial, reads line-delimited records until the connection
// drops or ctx is cancelled, and reconnects with exponential backoff. It
// returns only when ctx is done.
func (d *Dispatcher) Run(ctx context.Context, dial func(ctx context.Context) (net.Conn, error)) {
	delay := initialReconnectDelay
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := dial(ctx)
		if err != nil {
			d.logger.Error("failed to connect to event stream, will retry", "error", err, "delay", delay)
			if waitBackoff(ctx, delay) != nil {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		d.logger.Info("connected to event stream")
		delay = initialReconnectDelay

		err = d.readLoop(ctx, conn)
		conn.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("event stream read failed, reconnecting", "error", err, "delay", delay)
			if waitBackoff(ctx, delay) != nil {
				return
			}
			delay = nextDelay(delay)
		}
	}
}

// readLoop scans conn line by line, parsing and applying each record. A
// malformed line is logged and skipped -- it never disconnects the stream,
// per spec.md 4.6/7's InputMalformed policy. A scanner error (including
// EOF) returns to the caller to trigger reconnect.
func (d *Dispatcher) readLoop(ctx context.Context, conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return context.Canceled
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := d.handleLine(line); err != nil {
			d.logger.Warn("dropping malformed record", "error", err)
			if d.metrics != nil {
				d.metrics.malformedTotal.Inc()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("ingress: stream closed (EOF)")
}

// handleLine parses one line and, on success, applies the corresponding
// cache mutation and enqueues an evaluation task if a pivot was inferred.
func (d *Dispatcher) handleLine(line string) error {
	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch rec.EventType {
	case eventSyncV2:
		return d.handleSyncV2(rec)
	case eventSwapV3, eventPancakeSwapV3:
		return d.handleSwapV3(rec)
	default:
		// Unknown event_type: ignore, per spec.md 6.
		return nil
	}
}

func (d *Dispatcher) handleSyncV2(rec record) error {
	addr, err := parseAddress(rec.Address)
	if err != nil {
		return err
	}
	poolID, ok := d.pools.IndexOf(addr)
	if !ok {
		return nil // pool not in the known universe: cache untouched, no task.
	}
	meta := d.poolMeta[poolID]

	r0, err := parseHexUint(rec.Reserve0)
	if err != nil {
		return fmt.Errorf("%w: reserve0: %v", ErrMalformed, err)
	}
	r1, err := parseHexUint(rec.Reserve1)
	if err != nil {
		return fmt.Errorf("%w: reserve1: %v", ErrMalformed, err)
	}

	prev, hadPrev := d.cache.Get(poolID)
	next := d.cache.UpdateV2Reserves(poolID, meta.Token0, meta.Token1, meta.FeeBps, r0, r1)

	if d.metrics != nil {
		d.metrics.recordsTotal.WithLabelValues("sync_v2").Inc()
	}

	if !hadPrev {
		return nil // no prior reserves to diff against: pivot cannot be inferred.
	}
	pivotToken, pivotAmount, ok := inferV2Pivot(prev, next)
	if !ok {
		return nil
	}
	d.enqueue(Task{Pool: poolID, PivotToken: pivotToken, PivotAmount: pivotAmount})
	return nil
}

// inferV2Pivot compares reserves before/after a sync to find which token
// was bought (its reserve decreased) and by how much, per spec.md 4.6.
func inferV2Pivot(prev, next poolstate.State) (uint64, *big.Int, bool) {
	if prev.Reserve0 == nil || prev.Reserve1 == nil {
		return 0, nil, false
	}
	d0 := new(big.Int).Sub(prev.Reserve0, next.Reserve0)
	d1 := new(big.Int).Sub(prev.Reserve1, next.Reserve1)

	switch {
	case d0.Sign() > 0 && d1.Sign() <= 0:
		return next.Token0, d0, true
	case d1.Sign() > 0 && d0.Sign() <= 0:
		return next.Token1, d1, true
	default:
		// Both reserves unchanged, or both increased/decreased (a liquidity
		// add/remove, not a swap): pivot cannot be inferred.
		return 0, nil, false
	}
}

func (d *Dispatcher) handleSwapV3(rec record) error {
	addr, err := parseAddress(rec.Address)
	if err != nil {
		return err
	}
	poolID, ok := d.pools.IndexOf(addr)
	if !ok {
		return nil
	}
	meta := d.poolMeta[poolID]

	sqrtPrice, err := parseFlexibleUint(rec.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("%w: sqrt_price_x96: %v", ErrMalformed, err)
	}
	liquidity, err := parseFlexibleUint(rec.Liquidity)
	if err != nil {
		return fmt.Errorf("%w: liquidity: %v", ErrMalformed, err)
	}
	tick, err := parseFlexibleInt(rec.Tick)
	if err != nil {
		return fmt.Errorf("%w: tick: %v", ErrMalformed, err)
	}

	d.cache.UpdateV3State(poolID, meta.Token0, meta.Token1, meta.FeeBps, sqrtPrice, liquidity, tick)

	if d.metrics != nil {
		d.metrics.recordsTotal.WithLabelValues("swap_v3").Inc()
	}

	// Per spec.md 9's preserved Open Question: without signed amounts the
	// cache is updated but no evaluation is triggered.
	if rec.Amount0 == nil || rec.Amount1 == nil {
		return nil
	}
	pivotToken, pivotAmount, ok := inferV3Pivot(rec, meta, d.tokens)
	if !ok {
		return nil
	}
	d.enqueue(Task{Pool: poolID, PivotToken: pivotToken, PivotAmount: pivotAmount})
	return nil
}

// inferV3Pivot finds the token whose signed amount is negative (an outflow
// from the pool, i.e. an inflow to the swapper) and returns its magnitude.
func inferV3Pivot(rec record, meta PoolMeta, tokens *tokenindex.Index) (uint64, *big.Int, bool) {
	a0, ok0 := new(big.Int).SetString(strings.TrimSpace(*rec.Amount0), 10)
	a1, ok1 := new(big.Int).SetString(strings.TrimSpace(*rec.Amount1), 10)
	if !ok0 || !ok1 {
		return 0, nil, false
	}

	token0, token1 := meta.Token0, meta.Token1
	if rec.Token0 != nil && rec.Token1 != nil && tokens != nil {
		if addr, err := parseAddress(*rec.Token0); err == nil {
			if idx, ok := tokens.IndexOf(addr); ok {
				token0 = idx
			}
		}
		if addr, err := parseAddress(*rec.Token1); err == nil {
			if idx, ok := tokens.IndexOf(addr); ok {
				token1 = idx
			}
		}
	}

	switch {
	case a0.Sign() < 0 && a1.Sign() >= 0:
		return token0, new(big.Int).Neg(a0), true
	case a1.Sign() < 0 && a0.Sign() >= 0:
		return token1, new(big.Int).Neg(a1), true
	default:
		return 0, nil, false
	}
}

// enqueue hands a task to the evaluator without blocking the dispatcher's
// single-reader loop indefinitely: if the task channel is full, the task is
// logged and dropped rather than stalling ingestion of the next record.
func (d *Dispatcher) enqueue(t Task) {
	select {
	case d.tasks <- t:
	default:
		d.logger.Warn("evaluation task queue full, dropping", "pool", t.Pool)
		if d.metrics != nil {
			d.metrics.tasksDropped.Inc()
		}
	}
}

func nextDelay(d time.Duration) time.Duration {
	next := d * 2
	if next > maxReconnectDelay {
		return maxReconnectDelay
	}
	return next
}

// waitBackoff sleeps for roughly delay, jittered by up to 25%, gated by a
// rate.Limiter the way a token-bucket backoff is expressed elsewhere in the
// ecosystem rather than a bare time.Sleep. Returns ctx.Err() if cancelled
// mid-wait.
func waitBackoff(ctx context.Context, delay time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	limiter := rate.NewLimiter(rate.Every(delay+jitter), 1)
	limiter.AllowN(time.Now(), 1) // consume the initial burst token so Wait actually blocks.
	return limiter.Wait(ctx)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: address %q is not a valid hex address", ErrMalformed, s)
	}
	return common.HexToAddress(s), nil
}

func parseHexUint(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, fmt.Errorf("%w: empty hex value", ErrMalformed)
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("%w: invalid hex value %q", ErrMalformed, s)
	}
	return n, nil
}

// parseFlexibleUint parses a JSON number, decimal string, or 0x-hex string
// into an unsigned big.Int, per spec.md 6's "decimal or 0x-hex" wire contract.
func parseFlexibleUint(raw json.RawMessage) (*big.Int, error) {
	s, err := rawToString(raw)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return parseHexUint(s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid numeric value %q", ErrMalformed, s)
	}
	return n, nil
}

// parseFlexibleInt is parseFlexibleUint's signed counterpart, used for tick.
func parseFlexibleInt(raw json.RawMessage) (int64, error) {
	s, err := rawToString(raw)
	if err != nil {
		return 0, err
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	n, err := parseFlexibleUint(json.RawMessage(`"` + s + `"`))
	if err != nil {
		return 0, err
	}
	v := n.Int64()
	if neg {
		v = -v
	}
	return v, nil
}

func rawToString(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", fmt.Errorf("%w: missing value", ErrMalformed)
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return s, nil
	}
	return trimmed, nil
}
