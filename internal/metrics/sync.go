package metrics

import "github.com/prometheus/client_golang/prometheus"

// Param synchronization Prometheus metrics.
var (
	NavigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "navigations_total",
			Help:      "Total number of navigation calls issued by the param sync engine",
		},
		[]string{"reason"}, // "push" / "legacy_rewrite"
	)

	NavigationsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "navigations_suppressed_total",
			Help:      "State changes whose params equal the last pushed params",
		},
	)

	URLEchoesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "url_echoes_total",
			Help:      "URL changes recognized as an echo of the current state",
		},
	)

	MalformedParamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusq",
			Name:      "malformed_params_total",
			Help:      "URL parameters that failed to decode",
		},
		[]string{"key"},
	)

	OpenViews = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "corpusq",
			Name:      "open_views",
			Help:      "Number of open search views",
		},
	)
)

var syncMetricsRegistered bool

// RegisterSyncMetrics registers param sync metrics. Must be called once from main.
func RegisterSyncMetrics() {
	if syncMetricsRegistered {
		return
	}
	prometheus.MustRegister(NavigationsTotal)
	prometheus.MustRegister(NavigationsSuppressedTotal)
	prometheus.MustRegister(URLEchoesTotal)
	prometheus.MustRegister(MalformedParamsTotal)
	prometheus.MustRegister(OpenViews)
	syncMetricsRegistered = true
}
