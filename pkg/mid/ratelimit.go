package mid

import (
	"net/http"

	"github.com/FinleyAI/finley-mvp/pkg/resilience"
)

// RateLimit returns middleware that rejects requests with 429 when the
// limiter has no tokens.
func RateLimit(l *resilience.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
