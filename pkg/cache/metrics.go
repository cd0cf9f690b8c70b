package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_cache_misses_total",
		Help: "Total number of cache misses",
	})

	cacheSets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_cache_sets_total",
		Help: "Total number of cache writes",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_cache_evictions_total",
		Help: "Total number of entries removed by garbage collection",
	})

	cacheRevalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetchkit_cache_revalidations_total",
		Help: "Total number of revalidation triggers",
	})

	backingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fetchkit_cache_backing_errors_total",
		Help: "Total number of backing store errors by operation",
	}, []string{"operation"})
)
