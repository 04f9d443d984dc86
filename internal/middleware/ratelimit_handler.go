package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/transcript-harvester/backend/internal/logging"
)

// RateLimit rejects requests from a caller that has exceeded limiter's
// budget with 429 Too Many Requests, keyed by the caller's IP address.
func RateLimit(limiter RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !limiter.Allow(key) {
			logging.FromContext(r.Context()).Warn("rate limit exceeded", "client_ip", key)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first hop recorded in X-Forwarded-For, falling back
// to the connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
