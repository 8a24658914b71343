// Package middleware holds the built-in middleware. Standard
// func(http.Handler) http.Handler middleware compose into a Chain that wraps
// the driver; Ref and Handler adapt them (and continuation-style handlers)
// into references the metadata registry accepts.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middleware; the first added runs outermost
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use appends m to the chain
func (c *Chain) Use(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Append returns a new chain extended with middlewares, leaving c untouched
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	out := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	out = append(out, c.middlewares...)
	out = append(out, middlewares...)
	return &Chain{middlewares: out}
}

// Len returns the number of middleware in the chain
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Then wraps handler with every middleware in the chain
func (c *Chain) Then(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// Ref adapts a standard middleware for use on controllers, actions or the
// global registry
func Ref(name string, m Middleware) metadata.MiddlewareRef {
	return metadata.UseHTTP(name, m)
}

// Refs adapts every middleware of the chain, naming them name[0], name[1], ...
func (c *Chain) Refs(name string) []metadata.MiddlewareRef {
	refs := make([]metadata.MiddlewareRef, len(c.middlewares))
	for i, m := range c.middlewares {
		refs[i] = Ref(name+"["+strconv.Itoa(i)+"]", m)
	}
	return refs
}
