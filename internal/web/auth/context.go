package auth

import (
	"context"
	"slices"

	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Principal is the authenticated caller
type Principal struct {
	ID    string   `json:"id"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the principal holds any of roles
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal stores p in ctx, along with its id and roles
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	ctx = webcontext.SetCurrentUser(ctx, p.ID)
	ctx = webcontext.SetUserRoles(ctx, p.Roles)
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the authenticated principal, if any
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// CurrentUser declares a parameter bound to the authenticated principal.
// Required parameters fail with 400 when the request is anonymous, so pair
// them with the bearer middleware to get a 401 instead.
func CurrentUser(opts ...metadata.ParamOption) metadata.ParamDecl {
	return metadata.Custom("currentUser", metadata.Any, func(rc *metadata.RequestContext) (any, error) {
		p, ok := FromContext(rc.Request.Context())
		if !ok {
			return nil, nil
		}
		return p, nil
	}, opts...)
}

// RequireRoles returns an error unless the principal in ctx holds one of roles
func RequireRoles(ctx context.Context, roles ...string) error {
	p, ok := FromContext(ctx)
	if !ok {
		return response.Unauthorized("authentication required")
	}
	if !p.HasRole(roles...) {
		return response.Forbidden("insufficient role")
	}
	return nil
}
