package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/rajasatyajit/CommentIntel/internal/logger"
	"github.com/rajasatyajit/CommentIntel/internal/ratelimit"
)

// RateLimit enforces requestsPerMinute per client IP and route using l.
// A non-positive limit or a nil limiter disables it; limiter errors let the request through.
func RateLimit(l ratelimit.Limiter, requestsPerMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || requestsPerMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r) + ":" + r.Method + ":" + routePattern(r)

			d, err := l.CheckRate(r.Context(), key, requestsPerMinute)
			if err != nil {
				logger.WithContext(r.Context()).Warn("Rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(d.ResetSec))

			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(d.ResetSec))
				write429(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// write429 writes Too Many Requests
func write429(w http.ResponseWriter) {
	http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
}
