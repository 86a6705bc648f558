package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search-tier Prometheus metrics. The tier label carries the strategy name
// (hybrid, hybrid_category, text_only, category_listing, offline_index,
// static_fallback); outcome is hit, empty, error or skipped.
var (
	SearchTierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uxlens",
			Name:      "search_tier_total",
			Help:      "Search strategy attempts by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uxlens",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"entry"}, // search, elements, multimodal, keywords
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchTierTotal)
	prometheus.MustRegister(SearchDuration)
	searchMetricsRegistered = true
}
