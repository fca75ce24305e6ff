package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/frahmantamala/course-marketplace/internal/auth"
	"github.com/frahmantamala/course-marketplace/internal/ratelimit"
)

// RateLimit caps requests per user on a route scope. Unauthenticated
// requests are counted per remote address instead.
func RateLimit(limiter *ratelimit.Limiter, scope string, limit int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			if user, ok := auth.UserFromContext(r.Context()); ok && user != nil {
				key = ratelimit.Key(scope, user.ID)
			} else {
				key = fmt.Sprintf("ratelimit:%s:addr:%s", scope, r.RemoteAddr)
			}

			result := limiter.Check(r.Context(), key, limit, window)
			if !result.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"code": 429, "message": "too many requests"}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
