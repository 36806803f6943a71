// Package metrics exposes the Prometheus registry for the creature catalog.
// All metrics are defined in their respective packages (client, enrichment,
// broadcast) to maintain modularity and avoid circular dependencies.
//
// This package provides the scrape handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the catalog.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{operation, status} (Counter): Upstream calls by operation ("list", "get") and HTTP status
//   - catalog_request_duration_seconds{operation} (Histogram): Upstream call duration by operation
//   - catalog_errors_total{class} (Counter): Errors by class (client, server, network, not_found, protocol)
//
// Pipeline Metrics (pkg/enrichment):
//   - catalog_refresh_total{outcome} (Counter): Refreshes by outcome (success, failed, superseded)
//   - catalog_refresh_duration_seconds (Histogram): Wall time of a refresh from list call to publish
//   - catalog_items_skipped_total{class} (Counter): Detail lookups dropped from a ResultSet
//   - catalog_result_set_size (Gauge): Entities in the currently published ResultSet
//
// Broadcast Metrics (pkg/broadcast):
//   - catalog_broadcast_messages_total{kind} (Counter): Events published to Redis
//   - catalog_broadcast_errors_total{operation} (Counter): Redis broadcast errors
//
// Example Prometheus Queries:
//
//   # Refresh Failure Rate
//   sum(rate(catalog_refresh_total{outcome="failed"}[5m])) /
//   sum(rate(catalog_refresh_total[5m]))
//
//   # Skipped Items per Refresh
//   rate(catalog_items_skipped_total[5m]) / rate(catalog_refresh_total{outcome="success"}[5m])
//
//   # P95 Detail Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket{operation="get"}[5m]))
