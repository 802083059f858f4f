package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/metrics"
	"github.com/tendhq/tend/internal/ratelimit"
)

// RateLimitMiddleware creates an HTTP middleware that enforces one quota
// class. The keyFunc extracts the caller identity from the request; the
// boundary consults the limiter before any scheduler operation runs.
func RateLimitMiddleware(limiter *ratelimit.Limiter, family string, logger *zap.Logger, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if limiter.IsLimited(key) {
				metrics.RecordRateLimitRejection(family)
				logger.Debug("request rate limited",
					zap.String("family", family),
					zap.String("key", key),
				)
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(ErrorResponse{
					Type:   "rate_limit_exceeded",
					Title:  "Too Many Requests",
					Status: http.StatusTooManyRequests,
					Detail: "Rate limit exceeded. Please retry later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OwnerKeyFunc keys the limiter by the authenticated owner, falling back to
// the network address for unauthenticated traffic.
func OwnerKeyFunc(r *http.Request) string {
	if owner := r.Header.Get("X-User-ID"); owner != "" {
		return "owner:" + owner
	}
	return IPKeyFunc(r)
}

// IPKeyFunc extracts the client IP for rate limiting.
func IPKeyFunc(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return "ip:" + ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + r.RemoteAddr
}
