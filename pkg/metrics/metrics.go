// Package metrics exposes the Prometheus metrics of the heroes client.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, heroes) via promauto to maintain modularity and avoid circular
// dependencies; this package serves them and documents them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the heroes client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler returns an HTTP handler serving all registered metrics in the
// Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - marvel_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//     (network_error, quota_blocked and cache_hit for requests without a status)
//   - marvel_request_duration_seconds{endpoint} (Histogram): Request duration including retries
//   - marvel_errors_total{kind} (Counter): Errors by kind (network, invalid_response, decode, auth, rate_limited)
//
// Retry Metrics (pkg/client):
//   - marvel_retries_total{kind} (Counter): Retry attempts by error kind
//   - marvel_retry_backoff_seconds{kind} (Histogram): Backoff duration by error kind
//   - marvel_retry_exhausted_total{kind} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - marvel_cache_lookups_total{result} (Counter): Page cache lookups (fresh, stale, miss)
//   - marvel_cache_revalidations_total{result} (Counter): Conditional requests (not_modified, modified)
//   - marvel_cache_size_bytes (Gauge): Bytes written to the cache by this process
//   - marvel_cache_errors_total{operation} (Counter): Cache errors by operation (get, set, delete)
//
// Quota Metrics (pkg/ratelimit):
//   - marvel_quota_remaining (Gauge): Calls left in today's quota
//   - marvel_quota_blocks_total (Counter): Requests blocked because the quota is critical
//   - marvel_quota_throttles_total (Counter): Requests delayed because the quota is low
//
// List Metrics (pkg/heroes):
//   - heroes_fetches_total{kind, result} (Counter): Page fetches by kind (refresh, load_more)
//     and result (success, error, cancelled, discarded)
//   - heroes_fetch_duration_seconds{kind} (Histogram): Page fetch duration by kind
//   - heroes_load_more_skipped_total (Counter): Load-more requests rejected by the guards
//   - heroes_filter_recomputations_total (Counter): Debounced search recomputations
//
// Example Prometheus Queries:
//
//   # Quota Status
//   marvel_quota_remaining < 50
//
//   # Request Error Rate
//   rate(marvel_errors_total[5m])
//
//   # Cache Hit Ratio
//   sum(rate(marvel_cache_lookups_total{result="fresh"}[5m])) / sum(rate(marvel_cache_lookups_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(marvel_request_duration_seconds_bucket[5m]))
//
//   # Share of superseded page fetches
//   sum(rate(heroes_fetches_total{result="discarded"}[5m])) / sum(rate(heroes_fetches_total[5m]))
