package middleware

import (
	"net/http"

	"github.com/google/uuid"

	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
)

// RequestIDHeader is read for incoming ids and set on every response
const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request id, or assigns a UUID
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(webcontext.SetRequestID(r.Context(), id)))
		})
	}
}
