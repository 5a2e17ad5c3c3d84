// Package evaluator implements the opportunity evaluator of spec.md 4.7: on
// a pool-state event it selects the routes the event could have affected,
// simulates each in parallel, and emits the most profitable one. It is
// grounded on chains/base/grapher/graph.go's "precompute per-pool
// amount-out closures, walk them under a shared scratch state" shape,
// replaced with true goroutine fan-out (via golang.org/x/sync/errgroup)
// since spec.md 5 requires parallel, not sequential, per-route evaluation,
// and on differ/differ.go's NewMetrics(registry)-per-component convention
// for the Prometheus wiring.
package evaluator

import (
	"context"
	"math/big"
	"runtime"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/flashroute/arbcore/pkg/catalog"
	"github.com/flashroute/arbcore/pkg/poolstate"
	"github.com/flashroute/arbcore/pkg/simulator"
	"github.com/flashroute/arbcore/pkg/tokensafety"
)

// Logger defines a standard interface for structured, leveled logging,
// re-declared per package the same way streams/jsonrpc/client.Logger is.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RouteResult is one candidate route's simulated outcome.
type RouteResult struct {
	Route    *catalog.Route
	Amounts  []*big.Int
	ProfitBP int64
	Profit   *big.Int
	RouteIdx int
}

// Opportunity is the decoded triggering event plus the best profitable route
// found for it, per spec.md 3's Opportunity data model.
type Opportunity struct {
	Pool        uint64
	PivotToken  uint64
	PivotAmount *big.Int
	Candidates  []*RouteResult
	Best        *RouteResult
	Latency     time.Duration
}

// Config holds the evaluator's tunable parameters (spec.md 6).
type Config struct {
	MinProfitThresholdBP int64
	SlippageBP           uint16
	DeadlineMS           int
	Cores                int
}

// Evaluator runs candidate routes for a triggering event in parallel and
// selects the most profitable. The catalog, cache, and safety registry are
// shared-immutable-or-shared-mutable-with-atomic-reads collaborators; the
// Evaluator itself holds no per-event mutable state.
type Evaluator struct {
	catalog *catalog.Catalog
	cache   *poolstate.Cache
	safety  *tokensafety.Registry
	cfg     Config
	logger  Logger
	metrics *Metrics
}

// New constructs an Evaluator. The configured core count is not resolved
// here: each Evaluate call passes it through ResolveConcurrency.
func New(cat *catalog.Catalog, cache *poolstate.Cache, safety *tokensafety.Registry, cfg Config, logger Logger, registry prometheus.Registerer) *Evaluator {
	return &Evaluator{
		catalog: cat,
		cache:   cache,
		safety:  safety,
		cfg:     cfg,
		logger:  logger,
		metrics: NewMetrics(registry),
	}
}

// Metrics returns the evaluator's Prometheus collectors, so a caller can
// hand the same instance to NewSink and share the sink_dropped_total counter
// instead of registering it a second time.
func (e *Evaluator) Metrics() *Metrics {
	return e.metrics
}

// ResolveConcurrency turns the evaluator_cores config value into a worker
// count: a positive value is used as-is as a count (no CPU-mask form is
// parsed), zero or negative falls back to runtime.GOMAXPROCS(0).
func ResolveConcurrency(cores int) int {
	if cores > 0 {
		return cores
	}
	return runtime.GOMAXPROCS(0)
}

// Evaluate selects routes touching (pool, pivotToken), simulates each under
// a soft wall-clock deadline, and returns the best profitable opportunity,
// or nil if none clears the profit threshold. It never returns an error:
// per spec.md 7, dropped routes are not failures of the evaluation itself.
func (e *Evaluator) Evaluate(ctx context.Context, pool, pivotToken uint64, pivotAmount *big.Int) *Opportunity {
	start := time.Now()
	timer := prometheus.NewTimer(e.metrics.evalDuration.WithLabelValues())
	defer timer.ObserveDuration()

	if e.cfg.DeadlineMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.DeadlineMS)*time.Millisecond)
		defer cancel()
	}

	candidates := e.candidateRoutes(pool, pivotToken)
	e.metrics.candidatesTotal.Add(float64(len(candidates)))
	if len(candidates) == 0 {
		return nil
	}

	results := make([]*RouteResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ResolveConcurrency(e.cfg.Cores))

	for i, route := range candidates {
		i, route := i, route
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			r := e.simulateRoute(route, i, pivotToken, pivotAmount)
			results[i] = r
			return nil
		})
	}
	_ = g.Wait() // simulateRoute never returns an error; Wait only surfaces context cancellation.

	var profitable []*RouteResult
	for _, r := range results {
		if r != nil {
			profitable = append(profitable, r)
		}
	}
	if len(profitable) == 0 {
		e.metrics.noOpportunity.Inc()
		return nil
	}

	best := selectBest(profitable)
	if best.ProfitBP < e.cfg.MinProfitThresholdBP {
		e.metrics.belowThreshold.Inc()
		return nil
	}

	e.metrics.opportunitiesTotal.Inc()
	return &Opportunity{
		Pool:        pool,
		PivotToken:  pivotToken,
		PivotAmount: pivotAmount,
		Candidates:  profitable,
		Best:        best,
		Latency:     time.Since(start),
	}
}

// candidateRoutes returns by_token[pivotToken] filtered to routes that also
// traverse pool, per spec.md 4.7 step 1.
func (e *Evaluator) candidateRoutes(pool, pivotToken uint64) []*catalog.Route {
	touching := e.catalog.RoutesTouchingToken(pivotToken)
	if len(touching) == 0 {
		return nil
	}
	out := make([]*catalog.Route, 0, len(touching))
	for _, r := range touching {
		for _, p := range r.Pools {
			if p == pool {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// simulateRoute splits route around pivotToken and runs both legs forward
// from pivotAmount, per spec.md 4.7 step 2 and the preserved Open Question
// in 9: both legs run forward-in-amount from the event-derived pivot
// amount, rather than solving an exact-out buy leg.
func (e *Evaluator) simulateRoute(route *catalog.Route, routeIdx int, pivotToken uint64, pivotAmount *big.Int) *RouteResult {
	buyLeg, sellLeg, ok := catalog.SplitAround(route, pivotToken)
	if !ok {
		return nil
	}

	deps := simulator.Dependencies{Cache: e.cache, Safety: e.safety, Config: simulator.Config{SlippageBP: e.cfg.SlippageBP}}

	buyAmounts, _, err := simulator.RunLeg(buyLeg, pivotAmount, deps)
	if err != nil {
		return nil
	}
	sellAmounts, _, err := simulator.RunLeg(sellLeg, pivotAmount, deps)
	if err != nil {
		return nil
	}

	// Concatenate, eliding the duplicated pivot element (buyAmounts' last
	// entry and sellAmounts' first entry both correspond to the pivot hop).
	amounts := make([]*big.Int, 0, len(buyAmounts)+len(sellAmounts)-1)
	amounts = append(amounts, buyAmounts...)
	amounts = append(amounts, sellAmounts[1:]...)

	amountInFirst := amounts[0]
	amountOutLast := amounts[len(amounts)-1]
	if amountOutLast.Cmp(amountInFirst) <= 0 {
		return nil
	}

	profit := new(big.Int).Sub(amountOutLast, amountInFirst)
	profitBP := new(big.Int).Mul(profit, big.NewInt(10000))
	profitBP.Div(profitBP, amountInFirst)

	return &RouteResult{
		Route:    route,
		Amounts:  amounts,
		Profit:   profit,
		ProfitBP: profitBP.Int64(),
		RouteIdx: routeIdx,
	}
}

// selectBest picks the route maximizing ProfitBP, ties broken by absolute
// profit, then by route index for determinism, per spec.md 4.7 step 4.
func selectBest(candidates []*RouteResult) *RouteResult {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ProfitBP != b.ProfitBP {
			return a.ProfitBP > b.ProfitBP
		}
		cmp := a.Profit.Cmp(b.Profit)
		if cmp != 0 {
			return cmp > 0
		}
		return a.RouteIdx < b.RouteIdx
	})
	return candidates[0]
}

// Sink is the bounded, multi-producer single-consumer output channel of
// spec.md 5/6: producers are evaluator goroutines, the consumer is the
// execution engine. Send here only ever blocks for a small internal timeout
// before giving up and dropping the new opportunity, matching the SinkBusy
// policy of spec.md 7 (log and drop, never block the producer). Entries
// already queued are never dropped: on a full channel the oldest entry stays.
type Sink struct {
	ch      chan *Opportunity
	timeout time.Duration
	logger  Logger
	metrics *Metrics
}

// NewSink constructs a bounded opportunity sink with the given buffer size
// and per-send timeout.
func NewSink(bufferSize int, sendTimeout time.Duration, logger Logger, metrics *Metrics) *Sink {
	return &Sink{
		ch:      make(chan *Opportunity, bufferSize),
		timeout: sendTimeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Opportunities returns the read-only consumer side of the sink channel.
func (s *Sink) Opportunities() <-chan *Opportunity {
	return s.ch
}

// Send attempts to enqueue opp, giving up after the configured timeout and
// logging+dropping on failure (SinkBusy, spec.md 7).
func (s *Sink) Send(opp *Opportunity) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.ch <- opp:
	case <-timer.C:
		if s.logger != nil {
			s.logger.Warn("opportunity sink busy, dropping", "pool", opp.Pool, "pivot_token", opp.PivotToken)
		}
		if s.metrics != nil {
			s.metrics.sinkDropped.Inc()
		}
	}
}
