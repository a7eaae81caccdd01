package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/lost-found/internal/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCORS(t *testing.T) {
	handler := CORS("https://lostfound.example.org, https://admin.example.org")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	)

	tests := []struct {
		name         string
		method       string
		origin       string
		expectOrigin string
		expectStatus int
	}{
		{"allowed origin", "GET", "https://lostfound.example.org", "https://lostfound.example.org", http.StatusNoContent},
		{"localhost with port", "GET", "http://localhost:5173", "http://localhost:5173", http.StatusNoContent},
		{"localhost lookalike", "GET", "http://localhost.evil.com", "", http.StatusNoContent},
		{"unknown origin", "GET", "https://evil.example.com", "", http.StatusNoContent},
		{"preflight", "OPTIONS", "https://admin.example.org", "https://admin.example.org", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/lost", nil)
			req.Header.Set("Origin", tt.origin)
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if recorder.Code != tt.expectStatus {
				t.Errorf("expected status %d, got %d", tt.expectStatus, recorder.Code)
			}
			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tt.expectOrigin {
				t.Errorf("expected allow-origin %q, got %q", tt.expectOrigin, got)
			}
		})
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	origins := ParseAllowedOrigins(" https://a.example, ,https://b.example ")
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %d", len(origins))
	}
	if _, ok := origins["https://a.example"]; !ok {
		t.Error("expected https://a.example to be allowed")
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var fromCtx *zap.Logger

	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logger.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if fromCtx == nil {
		t.Fatal("expected logger in request context")
	}
	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if status := entries[0].ContextMap()["status"]; status != int64(http.StatusTeapot) {
		t.Errorf("expected status %d logged, got %v", http.StatusTeapot, status)
	}
}
