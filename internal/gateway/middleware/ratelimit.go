package middleware

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Distributed-File-Retrieval-Engine/internal/gateway/ratelimit"
)

// RateLimit returns middleware that enforces per-client rate limits using
// the ClientInfo placed in context by Auth. Requests without a validated
// client pass through; Auth already rejected unauthenticated writes.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetClientInfo(r.Context())
			if info == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(info.ClientID, info.RateLimit) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
