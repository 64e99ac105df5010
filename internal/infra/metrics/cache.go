package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheInvalidationsTotal) }

var cacheInvalidationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_invalidations_total",
		Help: "Cache keys dropped after a user document changed.",
	},
	[]string{"result"}, // ok | error
)

func AddCacheInvalidations(result string, keys int) {
	cacheInvalidationsTotal.WithLabelValues(norm(result)).Add(float64(keys))
}
