// Package diagnostics implements the optional append-only opportunity log of
// spec.md 6: one JSON object per emitted Opportunity, written to a file
// opened the way cmd/console/main.go opens its log file
// (os.O_CREATE|os.O_WRONLY|os.O_APPEND). Log file errors are reported but
// never affect evaluation, per spec.md 6/7.
package diagnostics

import (
	"encoding/json"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/flashroute/arbcore/pkg/evaluator"
)

// Logger defines a standard interface for structured, leveled logging,
// re-declared per package per the teacher's convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// hopRecord is one entry of the best route's simulated amounts, informative
// per spec.md 6.
type hopRecord struct {
	Index  int    `json:"index"`
	Amount string `json:"amount"`
}

// routeRecord is the best route's hops/pools/per-hop amounts/profit.
type routeRecord struct {
	Hops     []uint64    `json:"hops"`
	Pools    []uint64    `json:"pools"`
	Amounts  []hopRecord `json:"amounts"`
	Profit   string      `json:"profit"`
	ProfitBP int64       `json:"profit_bp"`
}

// entry is the JSON object written per opportunity, matching spec.md 6's
// informative schema: timestamp, pool, pivot token/amount, latency, best
// route details.
type entry struct {
	Timestamp   time.Time   `json:"timestamp"`
	Pool        uint64      `json:"pool"`
	PivotToken  uint64      `json:"pivot_token"`
	PivotAmount string      `json:"pivot_amount"`
	LatencyMS   int64       `json:"latency_ms"`
	Candidates  int         `json:"candidates"`
	BestRoute   routeRecord `json:"best_route"`
}

// Sink appends one JSON line per opportunity to a log file. It is safe for
// concurrent use by multiple evaluator goroutines.
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logger Logger
}

// Open opens (creating if necessary) the append-only diagnostic log at path.
func Open(path string, logger Logger) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &Sink{file: f, enc: json.NewEncoder(f), logger: logger}, nil
}

// Close closes the underlying log file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Record writes one opportunity as a JSON line. Write failures are logged,
// never propagated: the diagnostic sink must never affect evaluation.
func (s *Sink) Record(opp *evaluator.Opportunity) {
	if opp == nil || opp.Best == nil {
		return
	}

	e := entry{
		Timestamp:   time.Now(),
		Pool:        opp.Pool,
		PivotToken:  opp.PivotToken,
		PivotAmount: bigString(opp.PivotAmount),
		LatencyMS:   opp.Latency.Milliseconds(),
		Candidates:  len(opp.Candidates),
		BestRoute: routeRecord{
			Hops:     opp.Best.Route.Hops,
			Pools:    opp.Best.Route.Pools,
			Amounts:  hopRecords(opp.Best.Amounts),
			Profit:   bigString(opp.Best.Profit),
			ProfitBP: opp.Best.ProfitBP,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(e); err != nil && s.logger != nil {
		s.logger.Error("failed to write diagnostic log entry", "error", err)
	}
}

func hopRecords(amounts []*big.Int) []hopRecord {
	out := make([]hopRecord, len(amounts))
	for i, a := range amounts {
		out[i] = hopRecord{Index: i, Amount: bigString(a)}
	}
	return out
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
