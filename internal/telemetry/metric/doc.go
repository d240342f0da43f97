// Package metric provides Prometheus metrics for FileVault.
//
//   - prometheus.go: registry, metric families and HTTP handler
//   - collector.go: scrape-time collector for values owned elsewhere
//
// Metrics are exposed at /metrics by the ops HTTP server.
package metric
