package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the request context. Parameter resolution and awaited
// results observe the deadline, and a result produced after it is replaced
// by a 503 error.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
