// Package httpserver serves the operational HTTP endpoints:
//
//   - GET /healthz: liveness
//   - GET /readyz: readiness, 503 while the file listener is down
//   - GET /metrics: Prometheus metrics, optionally behind a bearer token
package httpserver
