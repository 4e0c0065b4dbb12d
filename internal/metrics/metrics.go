// Package metrics registers Prometheus collectors for the catalog client and
// the refresh engine. Collectors use the default registry so an embedding
// process can expose them with promhttp without extra wiring.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// APIRequests counts catalog API calls by outcome
	// (ok, timeout, network, http_error, malformed).
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_api_requests_total",
		Help: "Catalog API requests by outcome.",
	}, []string{"outcome"})

	// APIRetries counts retry attempts after timeout/network failures.
	APIRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "iptvdeck_api_retries_total",
		Help: "Catalog API retry attempts.",
	})

	// RefreshRuns counts bulk refresh runs by terminal state
	// (completed, stopped, failed).
	RefreshRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "iptvdeck_refresh_runs_total",
		Help: "Bulk refresh runs by terminal state.",
	}, []string{"result"})

	// RefreshDuration observes wall time of bulk refresh runs.
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "iptvdeck_refresh_duration_seconds",
		Help:    "Bulk refresh run duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// CategoriesCached / ItemsCached track cache size per kind after a refresh.
	CategoriesCached = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iptvdeck_categories_cached",
		Help: "Cached categories per kind.",
	}, []string{"kind"})

	ItemsCached = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iptvdeck_items_cached",
		Help: "Cached items per kind (deduplicated).",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(APIRequests, APIRetries, RefreshRuns, RefreshDuration, CategoriesCached, ItemsCached)
}
