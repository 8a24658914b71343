// Package router binds built actions to HTTP. Driver implements the
// execution driver contract on top of a chi mux; Router is the route table
// underneath, adding regular-expression routes that chi cannot express.
package router

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouteInfo describes a registered route for introspection
type RouteInfo struct {
	Method  string
	Pattern string
	Action  string
}

type endpoint struct {
	method  string
	handler http.Handler
}

type patternRoute struct {
	endpoint
	pattern *regexp.Regexp
}

func (e endpoint) matches(method string) bool {
	return e.method == "" || e.method == method || (e.method == http.MethodGet && method == http.MethodHead)
}

// literalRoute holds every endpoint registered on one chi pattern. The first
// endpoint matching the request method wins.
type literalRoute struct {
	router    *Router
	endpoints []endpoint
}

func (lr *literalRoute) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	for _, e := range lr.endpoints {
		if e.matches(req.Method) {
			e.handler.ServeHTTP(w, req)
			return
		}
	}
	lr.router.fallback(w, req)
}

// Router routes literal paths through chi and falls back to pattern routes.
// Requests matching neither go to the miss handler. When several routes
// match a request the one registered first handles it.
type Router struct {
	mux      chi.Router
	literals map[string]*literalRoute
	patterns []patternRoute
	routes   []RouteInfo
	miss     http.Handler
}

// NewRouter creates a router. Trailing slashes are ignored and HEAD requests
// are served by GET routes.
func NewRouter(miss http.Handler) *Router {
	if miss == nil {
		miss = http.NotFoundHandler()
	}
	r := &Router{
		mux:      chi.NewRouter(),
		literals: make(map[string]*literalRoute),
		miss:     miss,
	}
	r.mux.Use(chimw.StripSlashes)
	r.mux.NotFound(r.fallback)
	r.mux.MethodNotAllowed(r.fallback)
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handle registers handler for a literal path such as "/users/:id". An empty
// method matches every method.
func (r *Router) Handle(method, path, name string, handler http.Handler) (err error) {
	pattern := ChiPattern(path)

	lr, ok := r.literals[pattern]
	if !ok {
		// chi reports conflicting patterns by panicking
		defer func() {
			if v := recover(); v != nil {
				err = fmt.Errorf("route %s %s: %v", methodLabel(method), path, v)
			}
		}()
		lr = &literalRoute{router: r}
		r.mux.Handle(pattern, lr)
		r.literals[pattern] = lr
	}

	lr.endpoints = append(lr.endpoints, endpoint{method: method, handler: handler})
	r.routes = append(r.routes, RouteInfo{Method: methodLabel(method), Pattern: pattern, Action: name})
	return nil
}

// HandlePattern registers handler for paths matching re. Named groups become
// path parameters.
func (r *Router) HandlePattern(method string, re *regexp.Regexp, name string, handler http.Handler) {
	r.patterns = append(r.patterns, patternRoute{endpoint: endpoint{method: method, handler: handler}, pattern: re})
	r.routes = append(r.routes, RouteInfo{Method: methodLabel(method), Pattern: re.String(), Action: name})
}

// Routes returns the registered routes sorted by pattern then method
func (r *Router) Routes() []RouteInfo {
	out := make([]RouteInfo, len(r.routes))
	copy(out, r.routes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Router) fallback(w http.ResponseWriter, req *http.Request) {
	for _, route := range r.patterns {
		if !route.matches(req.Method) {
			continue
		}
		match := route.pattern.FindStringSubmatch(req.URL.Path)
		if match == nil {
			continue
		}

		rctx := chi.RouteContext(req.Context())
		if rctx == nil {
			rctx = chi.NewRouteContext()
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		}
		for i, name := range route.pattern.SubexpNames() {
			if i > 0 && name != "" {
				rctx.URLParams.Add(name, match[i])
			}
		}
		route.handler.ServeHTTP(w, req)
		return
	}
	r.miss.ServeHTTP(w, req)
}

// ChiPattern converts ":name" segments into chi's "{name}" placeholders.
// An empty path is the root.
func ChiPattern(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if name, ok := strings.CutPrefix(seg, ":"); ok && name != "" {
			segments[i] = "{" + name + "}"
		}
	}
	out := strings.Join(segments, "/")
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

func methodLabel(method string) string {
	if method == "" {
		return "ALL"
	}
	return method
}
