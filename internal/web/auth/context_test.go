package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	webcontext "github.com/conduit-lang/waypoint/internal/web/context"
	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

func TestWithPrincipal(t *testing.T) {
	p := Principal{ID: "user-1", Roles: []string{"editor"}}
	ctx := WithPrincipal(context.Background(), p)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, "user-1", webcontext.GetCurrentUser(ctx))
	assert.Equal(t, []string{"editor"}, webcontext.GetUserRoles(ctx))

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func TestPrincipal_HasRole(t *testing.T) {
	p := Principal{Roles: []string{"editor", "viewer"}}
	assert.True(t, p.HasRole("admin", "viewer"))
	assert.False(t, p.HasRole("admin"))
	assert.False(t, p.HasRole())
}

func TestRequireRoles(t *testing.T) {
	err := RequireRoles(context.Background(), "admin")
	assert.Equal(t, http.StatusUnauthorized, response.StatusOf(err))

	ctx := WithPrincipal(context.Background(), Principal{ID: "u", Roles: []string{"viewer"}})
	err = RequireRoles(ctx, "admin")
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err))

	assert.NoError(t, RequireRoles(ctx, "viewer"))
}

func TestCurrentUser(t *testing.T) {
	decl := CurrentUser(metadata.Required())
	converter := decl.Record().Options.Converter
	require.NotNil(t, converter)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	v, err := converter(&metadata.RequestContext{Request: req})
	require.NoError(t, err)
	assert.Nil(t, v)

	p := Principal{ID: "user-1"}
	req = req.WithContext(WithPrincipal(req.Context(), p))
	v, err = converter(&metadata.RequestContext{Request: req})
	require.NoError(t, err)
	assert.Equal(t, p, v)
}
