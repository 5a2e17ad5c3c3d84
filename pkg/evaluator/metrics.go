package evaluator

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors differ/differ.go's "one Metrics struct per component,
// constructed with NewMetrics(registry) and registered against a shared
// prometheus.Registerer" convention.
type Metrics struct {
	evalDuration       *prometheus.HistogramVec
	candidatesTotal    prometheus.Counter
	opportunitiesTotal prometheus.Counter
	belowThreshold     prometheus.Counter
	noOpportunity      prometheus.Counter
	sinkDropped        prometheus.Counter
}

// NewMetrics registers and returns the evaluator's metrics against
// registry. A nil registry is tolerated for tests and standalone use: the
// collectors are still constructed, just never scraped.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		evalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbcore",
			Subsystem: "evaluator",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall-clock time of one Evaluate call, from its start to the opportunity decision.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{}),
		candidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "evaluator",
			Name:      "candidate_routes_total",
			Help:      "Number of candidate routes considered across all events.",
		}),
		opportunitiesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "evaluator",
			Name:      "opportunities_emitted_total",
			Help:      "Number of profitable opportunities emitted.",
		}),
		belowThreshold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "evaluator",
			Name:      "below_threshold_total",
			Help:      "Number of events where the best route did not clear min_profit_threshold_bp.",
		}),
		noOpportunity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "evaluator",
			Name:      "no_opportunity_total",
			Help:      "Number of events where no candidate route simulated profitably.",
		}),
		sinkDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "evaluator",
			Name:      "sink_dropped_total",
			Help:      "Number of opportunities dropped because the output sink was busy.",
		}),
	}

	if registry != nil {
		registry.MustRegister(m.evalDuration, m.candidatesTotal, m.opportunitiesTotal, m.belowThreshold, m.noOpportunity, m.sinkDropped)
	}
	return m
}
