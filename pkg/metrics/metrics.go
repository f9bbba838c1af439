// Package metrics documents the Prometheus metrics exposed by the Data
// Bridges client. The metrics themselves are defined via promauto in their
// owning packages (transport, retry, token, fetcher, paginate) to keep the
// dependency graph acyclic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registerer all client metrics attach to.
var Registry = prometheus.DefaultRegisterer

// Metrics Reference
//
// Transport (pkg/transport):
//   - databridges_requests_total{operation, status} (Counter): remote calls
//     by operation and HTTP status (or "network_error")
//   - databridges_request_duration_seconds{operation} (Histogram): remote
//     call duration
//
// Retry (pkg/retry):
//   - databridges_retries_total{operation} (Counter): retry attempts
//   - databridges_retry_backoff_seconds{operation} (Histogram): backoff
//     durations
//   - databridges_retry_exhausted_total{operation} (Counter): retry budgets
//     exhausted
//
// Token (pkg/token):
//   - databridges_token_refreshes_total{outcome} (Counter): refreshes by
//     outcome (success, rejected, exhausted)
//
// Fetcher (pkg/fetcher):
//   - databridges_page_fetches_total{endpoint, outcome} (Counter): page
//     fetches by endpoint and outcome
//
// Paginator (pkg/paginate):
//   - databridges_aggregations_total{endpoint, outcome} (Counter):
//     multi-page aggregations by endpoint and outcome
//   - databridges_aggregation_duration_seconds{endpoint} (Histogram):
//     aggregation duration
//
// Example queries:
//
//   # Remote error rate
//   sum(rate(databridges_requests_total{status=~"4..|5.."}[5m]))
//
//   # Share of aggregations that fail
//   rate(databridges_aggregations_total{outcome="error"}[15m]) /
//   rate(databridges_aggregations_total[15m])
//
//   # P95 remote call latency
//   histogram_quantile(0.95, rate(databridges_request_duration_seconds_bucket[5m]))
