package middlewares

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/talentdock/authcore/internal/observability/logger"
	"github.com/talentdock/authcore/internal/rate"
)

// clientIP extrae la IP del cliente, considerando proxies.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIP expone la IP del cliente para los controllers.
func ClientIP(r *http.Request) string { return clientIP(r) }

// WithRateLimit limita por IP usando el limiter dado. limiter nil
// desactiva el middleware (dev sin Redis).
func WithRateLimit(limiter rate.Limiter, bucket string) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bucket + ":" + clientIP(r)
			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// Limiter caído: dejamos pasar antes que tirar el login.
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":             "rate_limited",
					"error_description": "demasiados requests, probá más tarde",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
