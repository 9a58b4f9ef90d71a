package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache, store and upstream Prometheus metrics.
var (
	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bioportal",
			Name:      "cache_total",
			Help:      "Cache lookups and writes by outcome",
		},
		[]string{"cache", "result"}, // result: hit / miss / error / write
	)

	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bioportal",
			Name:      "store_query_duration_seconds",
			Help:      "Document store query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	ImageRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bioportal",
			Name:      "image_service_requests_total",
			Help:      "Image service requests by outcome",
		},
		[]string{"status"}, // success / error
	)

	ImageRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bioportal",
			Name:      "image_service_request_duration_seconds",
			Help:      "Image service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	TaxMapBuildSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bioportal",
			Name:      "taxmap_build_seconds",
			Help:      "Taxonomy map computation time in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

var portalMetricsRegistered bool

// RegisterPortalMetrics registers cache, store and upstream metrics. Must be called once from main.
func RegisterPortalMetrics() {
	if portalMetricsRegistered {
		return
	}
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(StoreQueryDuration)
	prometheus.MustRegister(TaxMapBuildSeconds)
	prometheus.MustRegister(ImageRequestsTotal)
	prometheus.MustRegister(ImageRequestDuration)
	portalMetricsRegistered = true
}

// ObserveStoreQuery records the duration of one store operation.
func ObserveStoreQuery(op string, elapsed time.Duration) {
	StoreQueryDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
