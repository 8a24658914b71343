package metadata

import (
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type baseResource struct{}

func (b *baseResource) List() ([]string, error) { return nil, nil }
func (b *baseResource) Show(id string) (string, error) { return id, nil }
func (b *baseResource) Count() (int, error) { return 0, nil }

type userController struct {
	baseResource
}

func (c *userController) Show(id float64) (map[string]any, error) { return nil, nil }

func (c *userController) Search(name string, page int, active bool) ([]string, error) {
	return nil, nil
}

type searchFilter struct {
	Name  string `query:"name"`
	Limit int    `query:"limit"`
	Tags  []string
}

func (c *userController) Filter(f searchFilter) ([]string, error) { return nil, nil }

func findAction(t *testing.T, c *Controller, method string) *Action {
	t.Helper()
	for _, a := range c.Actions {
		if a.Method == method {
			return a
		}
	}
	t.Fatalf("action %s not built", method)
	return nil
}

func TestBuild_RouteComposition(t *testing.T) {
	tests := []struct {
		name       string
		base       string
		route      Route
		wantPath   string
		wantRegexp string
	}{
		{name: "literal", base: "/users", route: Path("/:id"), wantPath: "/users/:id"},
		{name: "empty action route", base: "/users", route: Path(""), wantPath: "/users"},
		{name: "empty base", base: "", route: Path("/health"), wantPath: "/health"},
		{
			name:       "pattern",
			base:       "/users",
			route:      Regexp(regexp.MustCompile(`^/\d+$`)),
			wantRegexp: `^/users/\d+/?$`,
		},
		{
			name:       "pattern without base",
			base:       "",
			route:      Regexp(regexp.MustCompile(`^/\d+$`)),
			wantRegexp: `^/\d+$`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.Controller(TypeOf[userController](), tt.base).Route(VerbGet, tt.route, "Show")

			controllers := NewBuilder(reg, BuilderOptions{}).Build()
			require.Len(t, controllers, 1)
			action := findAction(t, controllers[0], "Show")

			if tt.wantRegexp != "" {
				require.True(t, action.FullRoute.IsPattern())
				assert.Equal(t, tt.wantRegexp, action.FullRoute.Pattern.String())
				return
			}
			assert.False(t, action.FullRoute.IsPattern())
			assert.Equal(t, tt.wantPath, action.FullRoute.Path)
		})
	}
}

func TestAppendBaseRoute(t *testing.T) {
	assert.Equal(t, "/api/users", AppendBaseRoute("api", Path("/users")).Path)
	assert.Equal(t, "/api/users", AppendBaseRoute("/api", Path("/users")).Path)

	got := AppendBaseRoute("/v1.0", Regexp(regexp.MustCompile(`^/items/?$`)))
	require.True(t, got.IsPattern())
	assert.Equal(t, `^/v1\.0/items/?$`, got.Pattern.String())
	assert.True(t, got.Pattern.MatchString("/v1.0/items"))
	assert.True(t, got.Pattern.MatchString("/v1.0/items/"))
	assert.False(t, got.Pattern.MatchString("/v1x0/items"))
}

func TestBuild_InheritedActions(t *testing.T) {
	reg := NewRegistry()
	reg.Target(TypeOf[baseResource]()).Get("/", "List")
	reg.Target(TypeOf[baseResource]()).Get("/legacy/:id", "Show")
	users := reg.Controller(TypeOf[userController](), "/users", Extends(TypeOf[baseResource]()))
	users.Get("/:id", "Show").Params(PathParam("id", Any))

	controllers := NewBuilder(reg, BuilderOptions{}).Build()
	require.Len(t, controllers, 1)

	var shows int
	for _, a := range controllers[0].Actions {
		if a.Method == "Show" {
			shows++
		}
	}
	assert.Equal(t, 1, shows)

	show := findAction(t, controllers[0], "Show")
	assert.Equal(t, "/users/:id", show.FullRoute.Path)
	require.Len(t, show.Params, 1)
	assert.Equal(t, TypeNumber, show.Params[0].Type.Kind)

	list := findAction(t, controllers[0], "List")
	assert.Equal(t, "/users/", list.FullRoute.Path)
	assert.Equal(t, TypeOf[userController](), list.Target)
}

func TestBuild_SameMethodOnSeveralRoutes(t *testing.T) {
	reg := NewRegistry()
	reg.Target(TypeOf[baseResource]()).Get("/all", "List")
	users := reg.Controller(TypeOf[userController](), "/users", Extends(TypeOf[baseResource]()))
	users.Get("/cached", "List")
	users.Get("/", "List")

	controllers := NewBuilder(reg, BuilderOptions{}).Build()
	require.Len(t, controllers, 1)

	var paths []string
	for _, a := range controllers[0].Actions {
		if a.Method == "List" {
			paths = append(paths, a.FullRoute.Path)
		}
	}
	assert.Equal(t, []string{"/users/cached", "/users/"}, paths)
}

func TestBuild_SelectsControllers(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users")
	reg.Controller(TypeOf[baseResource](), "/base")

	b := NewBuilder(reg, BuilderOptions{})
	assert.Len(t, b.Build(), 2)

	selected := b.Build(TypeOf[baseResource]())
	require.Len(t, selected, 1)
	assert.Equal(t, "/base", selected[0].Route)
}

func TestBuild_ParamsSortedAndInferred(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users").
		Get("/search", "Search").
		ParamAt(2, Query("active", Any)).
		ParamAt(0, Query("name", Any)).
		ParamAt(1, Query("page", Any))

	controllers := NewBuilder(reg, BuilderOptions{}).Build()
	action := findAction(t, controllers[0], "Search")
	require.Len(t, action.Params, 3)

	assert.Equal(t, []int{0, 1, 2}, []int{action.Params[0].Index, action.Params[1].Index, action.Params[2].Index})
	assert.Equal(t, "name", action.Params[0].Name)
	assert.Equal(t, TypeString, action.Params[0].Type.Kind)
	assert.Equal(t, TypeNumber, action.Params[1].Type.Kind)
	assert.Equal(t, TypeBoolean, action.Params[2].Type.Kind)
}

func TestBuild_ExplicitTypeWins(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users").
		Get("/:id", "Show").
		Params(PathParam("id", String))

	action := findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "Show")
	assert.Equal(t, TypeString, action.Params[0].Type.Kind)
}

func TestBuild_CollectionFieldsInferred(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users").
		Get("/filter", "Filter").
		Params(Queries(Any))

	action := findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "Filter")
	fields := action.Params[0].Type.Fields
	assert.Equal(t, TypeString, fields["name"])
	assert.Equal(t, TypeNumber, fields["limit"])
	assert.Equal(t, TypeArray, fields["Tags"])
}

func TestBuild_RequiredDefault(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users").
		Get("/search", "Search").
		Params(
			Query("name", String),
			Query("page", Number, Optional()),
			Query("active", Boolean, Required()),
		)

	action := findAction(t, NewBuilder(reg, BuilderOptions{ParamRequired: true}).Build()[0], "Search")
	assert.True(t, action.Params[0].Required)
	assert.False(t, action.Params[1].Required)
	assert.True(t, action.Params[2].Required)

	action = findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "Search")
	assert.False(t, action.Params[0].Required)
}

func TestBuild_UsageFlags(t *testing.T) {
	reg := NewRegistry()
	opts := ParamOptions{MaxBodyBytes: 1024}
	ctrl := reg.Controller(TypeOf[userController](), "/users")
	ctrl.Post("/", "Show").Params(Body(Object, WithOptions(opts)))
	ctrl.Post("/upload", "List").Params(File("avatar"))
	ctrl.Post("/uploads", "Count").Params(Files("photos"))

	c := NewBuilder(reg, BuilderOptions{}).Build()[0]

	show := findAction(t, c, "Show")
	assert.True(t, show.BodyUsed)
	assert.Equal(t, int64(1024), show.BodyOptions.MaxBodyBytes)
	assert.False(t, show.FileUsed)

	assert.True(t, findAction(t, c, "List").FileUsed)
	assert.True(t, findAction(t, c, "Count").FilesUsed)
}

func TestBuild_JSONTyped(t *testing.T) {
	tests := []struct {
		name        string
		opts        []ControllerOption
		contentType string
		want        bool
	}{
		{name: "default controller", want: false},
		{name: "json controller", opts: []ControllerOption{JSON()}, want: true},
		{name: "json content type overrides", contentType: "application/json", want: true},
		{name: "html content type overrides json controller", opts: []ControllerOption{JSON()}, contentType: "text/html", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			action := reg.Controller(TypeOf[userController](), "/users", tt.opts...).Get("/", "List")
			if tt.contentType != "" {
				action.ContentType(tt.contentType)
			}

			got := findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "List")
			assert.Equal(t, tt.want, got.JSONTyped)
		})
	}
}

func TestBuild_StatusPolicies(t *testing.T) {
	reg := NewRegistry()
	ctrl := reg.Controller(TypeOf[userController](), "/users")
	ctrl.Get("/", "List")
	ctrl.Get("/:id", "Show").OnUndefined(http.StatusNoContent).OnUndefined(http.StatusGone)
	errMissing := errors.New("missing")
	ctrl.Get("/count", "Count").
		OnNullError(func(*RequestContext) error { return errMissing }).
		HTTPCode(http.StatusAccepted)

	c := NewBuilder(reg, BuilderOptions{UndefinedCode: http.StatusNotFound, NullCode: http.StatusNoContent}).Build()[0]

	list := findAction(t, c, "List")
	assert.Equal(t, http.StatusNotFound, list.UndefinedCode.Code)
	assert.Equal(t, http.StatusNoContent, list.NullCode.Code)

	show := findAction(t, c, "Show")
	assert.Equal(t, http.StatusNoContent, show.UndefinedCode.Code, "first handler wins")

	count := findAction(t, c, "Count")
	require.NotNil(t, count.NullCode.Error)
	assert.Equal(t, errMissing, count.NullCode.Error(nil))
	assert.Equal(t, http.StatusAccepted, count.SuccessCode)

	unset := findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "List")
	assert.False(t, unset.UndefinedCode.IsSet())
}

func TestBuild_Headers(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users").
		Get("/", "List").
		Header("X-Version", "1").
		Location("/elsewhere").
		ContentType("application/json").
		Header("content-type", "application/vnd.api+json").
		Header("X-Version", "2")

	action := findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "List")
	assert.Equal(t, []HeaderValue{
		{Name: "Location", Value: "/elsewhere"},
		{Name: "Content-Type", Value: "application/vnd.api+json"},
		{Name: "X-Version", Value: "2"},
	}, action.Headers)
}

func TestBuild_RedirectRenderAndSuppress(t *testing.T) {
	reg := NewRegistry()
	ctrl := reg.Controller(TypeOf[userController](), "/users")
	ctrl.Get("/go", "List").Redirect("/users/{{.id}}")
	ctrl.Get("/page", "Show").Render("user.html")
	ctrl.Get("/internal", "Count").NonHTTP()

	c := NewBuilder(reg, BuilderOptions{}).Build()[0]
	assert.Equal(t, "/users/{{.id}}", findAction(t, c, "List").Redirect)
	assert.Equal(t, "user.html", findAction(t, c, "Show").RenderedTemplate)
	assert.True(t, findAction(t, c, "Count").NoResult)
}

func TestBuild_Uses(t *testing.T) {
	reg := NewRegistry()
	ctrl := reg.Controller(TypeOf[userController](), "/users")
	ctrl.UseBefore(Use("auth", nil)).UseAfter(Use("audit", nil))
	ctrl.Get("/", "List").UseBefore(Use("cache", nil)).UseAfter(Use("metrics", nil))

	action := findAction(t, NewBuilder(reg, BuilderOptions{}).Build()[0], "List")

	names := func(uses []UseDef) []string {
		var out []string
		for _, u := range uses {
			out = append(out, u.Middleware.Name)
		}
		return out
	}
	assert.Equal(t, []string{"auth", "cache"}, names(action.Before()))
	assert.Equal(t, []string{"audit", "metrics"}, names(action.After()))
}

func TestBuilder_MiddlewarePriority(t *testing.T) {
	reg := NewRegistry()
	reg.Middleware(Use("five", nil), Global(), Priority(5))
	reg.Middleware(Use("ten", nil), Global(), Priority(10))
	reg.Middleware(Use("one", nil), Global(), Priority(1))
	reg.Middleware(Use("local", nil), Priority(100))
	reg.Middleware(Use("late", nil), Global(), After(), Priority(50))

	b := NewBuilder(reg, BuilderOptions{})

	var before []string
	for _, m := range b.Middlewares(PhaseBefore) {
		before = append(before, m.Middleware.Name)
	}
	assert.Equal(t, []string{"ten", "five", "one"}, before)

	after := b.Middlewares(PhaseAfter)
	require.Len(t, after, 1)
	assert.Equal(t, "late", after[0].Middleware.Name)
}

func TestBuilder_MiddlewareSelector(t *testing.T) {
	type audit struct{}
	type tracing struct{}

	reg := NewRegistry()
	reg.Middleware(UseType(TypeOf[audit](), MiddlewareNormal), Global())
	reg.Middleware(UseType(TypeOf[tracing](), MiddlewareNormal), Global())
	reg.Middleware(Use("fn", nil), Global())

	got := NewBuilder(reg, BuilderOptions{}).Middlewares(PhaseBefore, TypeOf[audit]())
	require.Len(t, got, 2)
	assert.Equal(t, TypeOf[audit](), got[0].Middleware.Target)
	assert.Equal(t, "fn", got[1].Middleware.Name)
}

func TestAction_Name(t *testing.T) {
	reg := NewRegistry()
	reg.Controller(TypeOf[userController](), "/users").Get("/", "List")
	action := NewBuilder(reg, BuilderOptions{}).Build()[0].Actions[0]
	assert.Equal(t, "userController.List", action.Name())
}
