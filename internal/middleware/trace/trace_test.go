package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || len(a) != len("req_")+16 {
		t.Errorf("unexpected request id %q", a)
	}
	if a == b {
		t.Error("request ids should be unique")
	}
}

func TestGetRequestID(t *testing.T) {
	if GetRequestID(context.Background()) != "" {
		t.Error("expected empty id without middleware")
	}
	ctx := context.WithValue(context.Background(), RequestIDKey, "req_x")
	if GetRequestID(ctx) != "req_x" {
		t.Error("expected stored id")
	}
}

func TestMiddlewareRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	mux := http.NewServeMux()
	var seenID string
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewMiddleware(quietLogger(), func(*http.Request) string { return "1.2.3.4" }, metrics).Middleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	if seenID == "" || rec.Header().Get(RequestIDHeader) != seenID {
		t.Errorf("request id header %q does not match context id %q", rec.Header().Get(RequestIDHeader), seenID)
	}

	got := testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "GET /items/{id}", "418"))
	if got != 1 {
		t.Errorf("requests_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(metrics.Duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
	if v := testutil.ToFloat64(metrics.InFlight); v != 0 {
		t.Errorf("in flight = %v, want 0", v)
	}
}

func TestMiddlewareWithoutMetrics(t *testing.T) {
	h := NewMiddleware(nil, nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard, Format: log.FormatText, Component: log.ComponentTrace})
}

func TestMiddlewareLogsThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: log.FormatJSON, Component: log.ComponentTrace, Output: &buf})

	h := NewMiddleware(logger, func(*http.Request) string { return "1.2.3.4" }, nil).
		Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing?x=1", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON entry, got %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":               "HTTP request completed",
		"level":             "WARN",
		log.FieldComponent:  log.ComponentTrace,
		log.FieldClientIP:   "1.2.3.4",
		log.FieldPath:       "/missing",
		log.FieldQuery:      "x=1",
		log.FieldStatusCode: float64(http.StatusNotFound),
		log.FieldSuccess:    false,
		log.FieldRequestID:  rec.Header().Get(RequestIDHeader),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}
