package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "directory",
		Name:      "cache_hits_total",
		Help:      "Tenant directory cache hits by backend.",
	}, []string{"backend"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "directory",
		Name:      "cache_misses_total",
		Help:      "Tenant directory cache misses by backend.",
	}, []string{"backend"})

	lookupErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "controlplane",
		Subsystem: "directory",
		Name:      "lookup_errors_total",
		Help:      "Tenant directory lookups that returned an error.",
	}, []string{"kind"})
)

// CountLookupError records a classified lookup failure (not_found, gone,
// internal).
func CountLookupError(kind string) {
	lookupErrors.WithLabelValues(kind).Inc()
}
