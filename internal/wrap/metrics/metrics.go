package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the wrap registry module.
// Tracks mint outcomes and critical path durations.
type Metrics struct {
	WrapsMinted   prometheus.Counter
	MintFailures  *prometheus.CounterVec
	Queries       prometheus.Counter
	MintDuration  prometheus.Histogram
	QueryDuration prometheus.Histogram
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		WrapsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wrap_registry_wraps_minted_total",
			Help: "Total number of wrap records minted",
		}),
		MintFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wrap_registry_mint_failures_total",
			Help: "Total number of rejected mint attempts by failure code",
		}, []string{"code"}),
		Queries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wrap_registry_queries_total",
			Help: "Total number of wrap queries served",
		}),
		MintDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wrap_registry_mint_duration_seconds",
			Help:    "Duration of mint operations (authorization through commit)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wrap_registry_query_duration_seconds",
			Help:    "Duration of query operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementWrapsMinted records a successful mint.
func (m *Metrics) IncrementWrapsMinted() {
	m.WrapsMinted.Inc()
}

// IncrementMintFailure records a rejected mint attempt by domain error code.
func (m *Metrics) IncrementMintFailure(code string) {
	m.MintFailures.WithLabelValues(code).Inc()
}

// IncrementQueries records a served query.
func (m *Metrics) IncrementQueries() {
	m.Queries.Inc()
}

// ObserveMint records the duration of a mint operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMint(start time.Time) {
	m.MintDuration.Observe(time.Since(start).Seconds())
}

// ObserveQuery records the duration of a query operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveQuery(start time.Time) {
	m.QueryDuration.Observe(time.Since(start).Seconds())
}
