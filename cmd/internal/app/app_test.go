package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.Session.AccessTTL != 10*time.Minute || cfg.Session.SessionTTL != 24*time.Hour {
		t.Fatalf("session defaults: %+v", cfg.Session)
	}
	if cfg.Kafka.Topic != "yubiapp.audit" {
		t.Fatalf("kafka topic = %q", cfg.Kafka.Topic)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH0_ADDR", ":9999")
	t.Setenv("AUTH0_ACCESS_TTL", "5m")
	t.Setenv("AUTH0_STATIC_DEVICES", "a=1,b=2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.Session.AccessTTL != 5*time.Minute {
		t.Fatalf("AccessTTL = %v", cfg.Session.AccessTTL)
	}
	if len(cfg.StaticDevices) != 2 || cfg.StaticDevices[0] != "a=1" {
		t.Fatalf("StaticDevices = %v", cfg.StaticDevices)
	}
}

func TestLoadConfigRejectsBadSessionTTLs(t *testing.T) {
	t.Setenv("AUTH0_ACCESS_TTL", "48h")
	t.Setenv("AUTH0_SESSION_TTL", "24h")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("access ttl longer than session ttl accepted")
	}
}

func TestReadyzInMemory(t *testing.T) {
	t.Setenv("AUTH0_STATIC_DEVICES", "dev-key=s3cret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	a, err := New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)

	// No external backends configured, so readiness has nothing to ping.
	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: status %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ready") {
		t.Fatalf("readyz body: %s", rec.Body.String())
	}
}

func TestLoggingResponseWriterStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	lw := &loggingResponseWriter{ResponseWriter: rec, status: http.StatusOK}

	lw.WriteHeader(http.StatusTeapot)
	lw.WriteHeader(http.StatusOK)
	if lw.status != http.StatusTeapot {
		t.Fatalf("status = %d, want first WriteHeader to win", lw.status)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.7" {
		t.Fatalf("clientIP with XFF = %q", got)
	}
}

func TestMetricsInstrument(t *testing.T) {
	m, _ := NewMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	h := m.Instrument(mux)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}
