package metrics

import "github.com/prometheus/client_golang/prometheus"

// Aggregation Prometheus metrics.
var (
	AggregationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "aggregation_requests_total",
			Help:      "Total number of backend aggregation requests",
		},
		[]string{"kind", "status"},
	)

	AggregationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpusq",
			Name:      "aggregation_request_duration_seconds",
			Help:      "Backend aggregation request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	DefaultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "default_cache_total",
			Help:      "Filter default resolutions served from the filter itself vs fetched",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	AggregationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "aggregation_cache_total",
			Help:      "Aggregation KV cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	StaleResponsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "aggregation_stale_responses_total",
			Help:      "Aggregation responses dropped because they were superseded or their filter was disposed",
		},
	)
)

var aggMetricsRegistered bool

// RegisterAggregationMetrics registers aggregation metrics. Must be called once from main.
func RegisterAggregationMetrics() {
	if aggMetricsRegistered {
		return
	}
	prometheus.MustRegister(AggregationRequestsTotal)
	prometheus.MustRegister(AggregationRequestDuration)
	prometheus.MustRegister(DefaultCacheTotal)
	prometheus.MustRegister(AggregationCacheTotal)
	prometheus.MustRegister(StaleResponsesTotal)
	aggMetricsRegistered = true
}
