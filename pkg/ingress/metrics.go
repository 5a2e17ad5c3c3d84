package ingress

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors differ/differ.go's NewMetrics(registry)-per-component
// convention, applied to the event dispatcher.
type Metrics struct {
	recordsTotal   *prometheus.CounterVec
	malformedTotal prometheus.Counter
	tasksDropped   prometheus.Counter
}

// NewMetrics registers and returns the dispatcher's metrics. A nil registry
// is tolerated for tests and standalone use.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "ingress",
			Name:      "records_total",
			Help:      "Number of well-formed event records applied to the cache, by event kind.",
		}, []string{"kind"}),
		malformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "ingress",
			Name:      "malformed_records_total",
			Help:      "Number of records dropped for failing to parse.",
		}),
		tasksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arbcore",
			Subsystem: "ingress",
			Name:      "tasks_dropped_total",
			Help:      "Number of evaluation tasks dropped because the task queue was full.",
		}),
	}
	if registry != nil {
		registry.MustRegister(m.recordsTotal, m.malformedTotal, m.tasksDropped)
	}
	return m
}
