package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
	"github.com/conduit-lang/waypoint/pkg/web/response"
)

// Recovery turns panics that escape the pipeline into 500 responses.
// http.ErrAbortHandler is re-raised so the server can drop the connection.
func Recovery(logger *zap.Logger, onError ErrorWriter) Middleware {
	if onError == nil {
		onError = JSONErrors(false, nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("panic recovered",
					zap.String("request_id", webcontext.GetRequestID(r.Context())),
					zap.String("panic", fmt.Sprint(v)),
					zap.ByteString("stack", debug.Stack()),
				)
				onError(w, r, response.InternalServerError("an unexpected error occurred"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
