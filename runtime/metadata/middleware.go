package metadata

import (
	"net/http"
	"reflect"
)

// NextFunc advances the request pipeline. A non-nil error switches the
// pipeline to error-handling middleware.
type NextFunc func(err error)

// HandlerFunc is a normal middleware. A returned error is routed to the
// driver's error handler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, next NextFunc) error

// ErrorHandlerFunc is an error-phase middleware
type ErrorHandlerFunc func(err error, w http.ResponseWriter, r *http.Request, next NextFunc)

// Handler is implemented by middleware types resolved from the container
type Handler interface {
	Use(w http.ResponseWriter, r *http.Request, next NextFunc) error
}

// ErrorHandler is implemented by error middleware types resolved from the container
type ErrorHandler interface {
	Error(err error, w http.ResponseWriter, r *http.Request, next NextFunc)
}

// MiddlewareKind tags a middleware as normal or error-handling
type MiddlewareKind int

const (
	MiddlewareNormal MiddlewareKind = iota
	MiddlewareError
)

// MiddlewareRef references a middleware either by function or by type.
// Type references are resolved through the container per request.
type MiddlewareRef struct {
	Name        string
	Kind        MiddlewareKind
	Handle      HandlerFunc
	HandleError ErrorHandlerFunc
	Target      reflect.Type

	// Wrap holds a standard net/http middleware; the driver threads the
	// request it passes downstream into the rest of the pipeline.
	Wrap func(http.Handler) http.Handler
}

// Use wraps a normal middleware function
func Use(name string, fn HandlerFunc) MiddlewareRef {
	return MiddlewareRef{Name: name, Kind: MiddlewareNormal, Handle: fn}
}

// UseError wraps an error middleware function
func UseError(name string, fn ErrorHandlerFunc) MiddlewareRef {
	return MiddlewareRef{Name: name, Kind: MiddlewareError, HandleError: fn}
}

// UseType references a middleware type implementing Handler (or ErrorHandler for MiddlewareError)
func UseType(t reflect.Type, kind MiddlewareKind) MiddlewareRef {
	return MiddlewareRef{Name: t.String(), Kind: kind, Target: t}
}

// UseHTTP adapts a standard func(http.Handler) http.Handler middleware
func UseHTTP(name string, mw func(http.Handler) http.Handler) MiddlewareRef {
	return MiddlewareRef{Name: name, Kind: MiddlewareNormal, Wrap: mw}
}

// RequestContext is the per-request handle triple passed through the pipeline
type RequestContext struct {
	Request  *http.Request
	Response http.ResponseWriter
	Next     NextFunc
}
