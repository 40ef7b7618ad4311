// Package metrics provides the Prometheus registry and exposition handler for apicache.
// All metrics are defined in their respective packages (cache, client)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by apicache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - apicache_hits_total (Counter): Responses served from cache
//   - apicache_misses_total (Counter): Delegated requests that ran the application
//   - apicache_bypasses_total (Counter): Requests refused admission by a full cache
//   - apicache_admission_rejects_total (Counter): Captured responses not stored because the cache filled meanwhile
//   - apicache_coalesced_requests_total (Counter): Misses answered from another request's capture
//   - apicache_304_responses_total (Counter): Conditional requests answered with 304
//   - apicache_entries (Gauge): Occupancy seen by the last admission decision
//   - apicache_capacity (Gauge): Capacity limit last set by any cache in the process
//   - apicache_errors_total{operation} (Counter): Store operation errors
//
// Admin Client Metrics (pkg/client):
//   - apicache_client_requests_total{operation, status} (Counter): Admin requests by operation and HTTP status
//   - apicache_client_retries_total{error_class} (Counter): Retry attempts by error class
//   - apicache_client_retry_backoff_seconds{error_class} (Histogram): Backoff waited before each retry
//   - apicache_client_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// HTTP Metrics (internal/server):
//   - apicache_http_requests_total{route, status} (Counter): Requests by route pattern and status
//   - apicache_http_request_duration_seconds{route} (Histogram): Request duration by route pattern
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(apicache_hits_total[5m])) /
//   (sum(rate(apicache_hits_total[5m])) + sum(rate(apicache_misses_total[5m])))
//
//   # Share of traffic bypassing a full cache
//   rate(apicache_bypasses_total[5m]) / sum(rate(apicache_http_requests_total[5m]))
//
//   # Cache at capacity
//   apicache_entries == apicache_capacity
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(apicache_http_request_duration_seconds_bucket[5m]))
