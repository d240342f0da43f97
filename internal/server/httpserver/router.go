package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/filevault-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics is exposed on /metrics. Nil uses the global registry.
	Metrics *metric.Registry

	// MetricsToken, when set, is required as "Authorization: Bearer <token>".
	MetricsToken string

	// Ready reports whether the server can take traffic. Nil means always ready.
	Ready func() error

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit int

	Logger *slog.Logger
}

// NewRouter creates the router for /healthz, /readyz and /metrics.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metricsHandler := metric.Handler()
	if cfg.Metrics != nil {
		metricsHandler = cfg.Metrics.Handler()
	}

	common := []Middleware{RequestID(), Recover(logger), AccessLog(logger)}
	if cfg.RateLimit > 0 {
		common = append(common, RateLimit(cfg.RateLimit))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", Chain(http.HandlerFunc(handleHealth), common...))
	mux.Handle("GET /readyz", Chain(readyHandler(cfg.Ready), common...))
	mux.Handle("GET /metrics", Chain(metricsHandler, append(common, MetricsAuth(cfg.MetricsToken))...))
	return mux
}
