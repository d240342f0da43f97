package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/filevault-go/internal/telemetry/metric"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(&RouterConfig{Metrics: metric.NewRegistry()})

	rec := get(t, h, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("/healthz body = %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	rec = get(t, h, "/healthz", map[string]string{"X-Request-ID": "abc"})
	if got := rec.Header().Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID = %q, want abc", got)
	}
}

func TestRouter_Ready(t *testing.T) {
	var down error
	h := NewRouter(&RouterConfig{
		Metrics: metric.NewRegistry(),
		Ready:   func() error { return down },
	})

	if rec := get(t, h, "/readyz", nil); rec.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", rec.Code)
	}

	down = errors.New("file listener not running")
	rec := get(t, h, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "file listener not running") {
		t.Errorf("/readyz body = %s", rec.Body.String())
	}
}

func TestRouter_Metrics(t *testing.T) {
	m := metric.NewRegistry()
	m.IncRegistrations()
	h := NewRouter(&RouterConfig{Metrics: m})

	rec := get(t, h, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "filevault_registrations_total 1") {
		t.Error("/metrics missing filevault_registrations_total")
	}
}

func TestRouter_MetricsToken(t *testing.T) {
	h := NewRouter(&RouterConfig{Metrics: metric.NewRegistry(), MetricsToken: "s3cret"})

	if rec := get(t, h, "/metrics", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec := get(t, h, "/metrics", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := get(t, h, "/metrics", map[string]string{"Authorization": "Bearer s3cret"}); rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", rec.Code)
	}
	if rec := get(t, h, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz needs no token, status = %d", rec.Code)
	}
}

func TestRouter_MethodAndPath(t *testing.T) {
	h := NewRouter(&RouterConfig{Metrics: metric.NewRegistry()})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz status = %d, want 405", rec.Code)
	}
	if rec := get(t, h, "/sessions", nil); rec.Code != http.StatusNotFound {
		t.Errorf("/sessions status = %d, want 404", rec.Code)
	}
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recover(discardLogger()))

	rec := get(t, h, "/", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if rec.Header().Get("X-Error-Code") != "FV-SYS-5000" {
		t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
	}
}

func TestRateLimit(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimit(1))

	if rec := get(t, h, "/", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := get(t, h, "/", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))
	get(t, h, "/", nil)

	if strings.Join(order, ",") != "a,b,handler" {
		t.Errorf("order = %v", order)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := New("127.0.0.1:0", NewRouter(&RouterConfig{Metrics: metric.NewRegistry()}), discardLogger())
	if s.Addr() != nil {
		t.Error("Addr() before Start should be nil")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler(), discardLogger())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	dup := New(s.Addr().String(), http.NotFoundHandler(), discardLogger())
	if err := dup.Start(); err == nil {
		dup.Shutdown(context.Background())
		t.Error("Start() on a busy port should fail")
	}
}
