// Package metrics provides the centralized Prometheus registry reference for
// fetchkit. All metrics are defined in their respective packages (dispatcher,
// cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by fetchkit. All metrics
// are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Dispatcher Metrics (pkg/dispatcher):
//   - fetchkit_requests_total{queue, outcome} (Counter): Dispatched requests by queue and outcome (success, failure, canceled)
//   - fetchkit_request_duration_seconds{queue} (Histogram): Adapter invocation duration by queue
//   - fetchkit_requests_in_flight{queue} (Gauge): Currently running requests by queue
//   - fetchkit_deduplicated_requests_total{queue} (Counter): Requests collapsed onto an in-flight equivalent
//   - fetchkit_retries_total{queue, error_class} (Counter): Retry attempts by queue and error class
//   - fetchkit_retry_exhausted_total{queue} (Counter): Requests that exhausted their retry budget
//   - fetchkit_aborts_total{queue} (Counter): Aborted requests by queue
//
// Cache Metrics (pkg/cache):
//   - fetchkit_cache_hits_total (Counter): Cache hits
//   - fetchkit_cache_misses_total (Counter): Cache misses
//   - fetchkit_cache_sets_total (Counter): Cache writes
//   - fetchkit_cache_evictions_total (Counter): Entries removed by garbage collection
//   - fetchkit_cache_revalidations_total (Counter): Revalidation triggers
//   - fetchkit_cache_backing_errors_total{operation} (Counter): Backing store errors by operation
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(fetchkit_cache_hits_total[5m])) /
//   (sum(rate(fetchkit_cache_hits_total[5m])) + sum(rate(fetchkit_cache_misses_total[5m])))
//
//   # Request Error Rate
//   sum(rate(fetchkit_requests_total{outcome="failure"}[5m])) by (queue)
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(fetchkit_request_duration_seconds_bucket[5m]))
//
//   # Deduplication Effectiveness
//   rate(fetchkit_deduplicated_requests_total[5m]) / rate(fetchkit_requests_total[5m])
