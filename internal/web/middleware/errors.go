package middleware

import (
	"net/http"

	"github.com/conduit-lang/waypoint/pkg/web/response"
)

// ErrorWriter sends err as the response. Standard middleware use it when they
// stop a request themselves.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

var renderer = response.NewRenderer()

// JSONErrors writes errors in the same shape as the driver's default error
// handler
func JSONErrors(development bool, overrides response.Overrides) ErrorWriter {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = renderer.JSON(w, response.StatusOf(err), response.Serialize(err, development, overrides))
	}
}
