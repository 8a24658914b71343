package middleware

import (
	"net/http"
	"strings"

	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// AuthConfig holds configuration for bearer authentication
type AuthConfig struct {
	Tokens *auth.TokenService

	// Optional lets anonymous requests through; invalid tokens are still rejected
	Optional bool

	// SkipPaths are served without authentication
	SkipPaths []string

	// OnError writes the rejection (defaults to JSON errors)
	OnError ErrorWriter
}

// Bearer authenticates requests carrying "Authorization: Bearer <token>" and
// stores the principal in the request context
func Bearer(config AuthConfig) Middleware {
	if config.OnError == nil {
		config.OnError = JSONErrors(false, nil)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range config.SkipPaths {
				if r.URL.Path == p {
					next.ServeHTTP(w, r)
					return
				}
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				if config.Optional {
					next.ServeHTTP(w, r)
					return
				}
				config.OnError(w, r, response.Unauthorized("authorization required"))
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				config.OnError(w, r, response.Unauthorized("invalid authorization format"))
				return
			}

			principal, err := config.Tokens.Verify(token)
			if err != nil {
				config.OnError(w, r, response.Unauthorized(err.Error()))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRoles rejects requests whose principal holds none of roles. The
// error goes to the driver's error handler.
func RequireRoles(roles ...string) metadata.MiddlewareRef {
	return metadata.Use("requireRoles", func(w http.ResponseWriter, r *http.Request, next metadata.NextFunc) error {
		if err := auth.RequireRoles(r.Context(), roles...); err != nil {
			return err
		}
		next(nil)
		return nil
	})
}
