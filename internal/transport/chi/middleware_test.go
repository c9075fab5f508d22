package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type allowFunc func(ctx context.Context, clientID string) bool

func (f allowFunc) Allow(ctx context.Context, clientID string) bool { return f(ctx, clientID) }

func TestMaxBytesMiddleware_DeclaredTooLarge(t *testing.T) {
	h := MaxBytesMiddleware(10)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rag", strings.NewReader(strings.Repeat("x", 50)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"payload_too_large"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMaxBytesMiddleware_WithinLimit(t *testing.T) {
	h := MaxBytesMiddleware(100)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rag", strings.NewReader("small"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMaxBytesMiddleware_Disabled(t *testing.T) {
	h := MaxBytesMiddleware(0)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rag", strings.NewReader(strings.Repeat("x", 1000)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRateLimitMiddleware_Denied(t *testing.T) {
	var gotClient string
	limiter := allowFunc(func(_ context.Context, clientID string) bool {
		gotClient = clientID
		return false
	})
	h := RateLimitMiddleware(limiter)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rag", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"rate_limited"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if gotClient != "203.0.113.9" {
		t.Errorf("client = %q, want bare IP", gotClient)
	}
}

func TestRateLimitMiddleware_Allowed(t *testing.T) {
	h := RateLimitMiddleware(allowFunc(func(context.Context, string) bool { return true }))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/rag", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRateLimitMiddleware_ExemptPaths(t *testing.T) {
	h := RateLimitMiddleware(allowFunc(func(context.Context, string) bool { return false }))(okHandler())

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}
