package chi

import (
	"context"
	"net"
	"net/http"

	"github.com/kareline/raggate/internal/metrics"
)

// clientLimiter admits or rejects a request for a client identity.
type clientLimiter interface {
	Allow(ctx context.Context, clientID string) bool
}

// MaxBytesMiddleware rejects requests whose declared Content-Length exceeds
// limit with 413. Bodies without a declared length are capped at read time
// instead, surfacing as a decode failure in the handler.
func MaxBytesMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware enforces the per-client fixed-window limit, keyed by
// remote IP. Health and metrics are exempt.
func RateLimitMiddleware(limiter clientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(r.Context(), clientIP(r)) {
				metrics.RateLimitedTotal.Inc()
				writeError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the remote address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
