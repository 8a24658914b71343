package waypoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/waypoint/internal/config"
	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/internal/web/cache"
	"github.com/conduit-lang/waypoint/internal/web/middleware"
	"github.com/conduit-lang/waypoint/internal/web/session"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

type noteController struct{}

func (c *noteController) Show(id int) map[string]any {
	return map[string]any{"id": id}
}

func (c *noteController) Count(sess *session.Session) int {
	n, _ := sess.Get("count")
	count, _ := n.(float64)
	count++
	sess.Set("count", count)
	return int(count)
}

func (c *noteController) Boom() string { panic("boom") }

func noteRegistry() *metadata.Registry {
	reg := metadata.NewRegistry()
	ctrl := reg.Controller(metadata.TypeOf[noteController](), "/notes", metadata.JSON())
	ctrl.Get("/count", "Count").Params(metadata.Session(metadata.Any))
	ctrl.Get("/boom", "Boom")
	ctrl.Get("/:id", "Show").Params(metadata.PathParam("id", metadata.Any))
	return reg
}

func get(h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateServer_Validation(t *testing.T) {
	_, err := CreateServer(Options{})
	assert.EqualError(t, err, "waypoint: a registry is required")

	cfg := config.Default()
	cfg.Prefix = "api/"
	_, err = CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	assert.ErrorContains(t, err, "prefix must start with '/'")
}

func TestCreateServer_Defaults(t *testing.T) {
	app, err := CreateServer(Options{Registry: noteRegistry()})
	require.NoError(t, err)
	defer app.Close()

	rec := get(app, "/notes/4")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":4}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	assert.Len(t, app.Controllers, 1)
	assert.Len(t, app.Routes(), 3)
	assert.Nil(t, app.Tokens)
}

func TestCreateServer_ConfigApplied(t *testing.T) {
	cfg := config.Default()
	cfg.Prefix = "/api"
	cfg.Development = true
	cfg.Auth.Secret = "secret"
	cfg.ErrorOverrides = map[string]map[string]any{"invalidparamerror": {"docs": "/errors/params"}}

	app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, http.StatusNotFound, get(app, "/notes/4").Code)

	rec := get(app, "/api/notes/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"docs":"/errors/params"`)
	assert.Contains(t, rec.Body.String(), `"stack"`)

	require.NotNil(t, app.Tokens)
}

func TestCreateServer_PanicInAction(t *testing.T) {
	app, err := CreateServer(Options{Registry: noteRegistry()})
	require.NoError(t, err)
	defer app.Close()

	rec := get(app, "/notes/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "waypoint_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestCreateServer_SessionStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name  string
		setup func(cfg *config.Config) Options
	}{
		{"memory", func(cfg *config.Config) Options {
			return Options{}
		}},
		{"redis", func(cfg *config.Config) Options {
			cfg.Session.Store = "redis"
			return Options{Redis: client}
		}},
		{"sql", func(cfg *config.Config) Options {
			cfg.Session.Store = "sql"
			cfg.Session.Driver = "sqlite3"
			cfg.Session.DSN = filepath.Join(t.TempDir(), "sessions.db")
			return Options{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Session.Enabled = true
			opts := tt.setup(cfg)
			opts.Registry = noteRegistry()
			opts.Config = cfg

			app, err := CreateServer(opts)
			require.NoError(t, err)
			defer app.Close()

			rec := get(app, "/notes/count")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "1", strings.TrimSpace(rec.Body.String()))

			rec = get(app, "/notes/count", sessionCookie(t, rec))
			assert.Equal(t, "2", strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestCreateServer_RateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Limit = 1

	app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, http.StatusOK, get(app, "/notes/1").Code)

	rec := get(app, "/notes/1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCreateServer_RateLimitPerUser(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.Limit = 1
	cfg.Auth.Secret = "limit-secret"

	app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	require.NoError(t, err)
	defer app.Close()
	require.NotNil(t, app.Tokens)

	request := func(user string) *httptest.ResponseRecorder {
		token, err := app.Tokens.Issue(auth.Principal{ID: user})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/notes/1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, request("alice").Code)
	assert.Equal(t, http.StatusOK, request("bob").Code)
	assert.Equal(t, http.StatusTooManyRequests, request("alice").Code)
}

func TestCreateServer_CORS(t *testing.T) {
	cfg := config.Default()
	cfg.CORS.Enabled = true

	app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	require.NoError(t, err)
	defer app.Close()

	req := httptest.NewRequest(http.MethodOptions, "/notes/1", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet))
}

type tickController struct{ ticks int }

func (c *tickController) Tick() int {
	c.ticks++
	return c.ticks
}

func TestCreateServer_ResponseCache(t *testing.T) {
	t.Run("global", func(t *testing.T) {
		cfg := config.Default()
		cfg.Cache.Enabled = true

		app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
		require.NoError(t, err)
		defer app.Close()

		assert.Equal(t, "MISS", get(app, "/notes/4").Header().Get("X-Cache"))
		rec := get(app, "/notes/4")
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.JSONEq(t, `{"id":4}`, rec.Body.String())
	})

	t.Run("per action over redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		reg := metadata.NewRegistry()
		ctrl := reg.Controller(metadata.TypeOf[tickController](), "/ticks")
		ctrl.Get("/cached", "Tick").UseBefore(cache.Action(cache.Config{Store: cache.NewRedisStore(client, "")}))
		ctrl.Get("/", "Tick")

		app, err := CreateServer(Options{Registry: reg})
		require.NoError(t, err)
		defer app.Close()

		assert.Equal(t, "1", get(app, "/ticks/cached").Body.String())
		rec := get(app, "/ticks/cached")
		assert.Equal(t, "1", rec.Body.String())
		assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
		assert.Equal(t, "2", get(app, "/ticks").Body.String())
	})
}

func TestCreateServer_Profiling(t *testing.T) {
	cfg := config.Default()
	cfg.Server.PprofPath = "/debug/pprof"

	app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, http.StatusOK, get(app, "/debug/pprof/").Code)
	assert.Equal(t, http.StatusOK, get(app, "/notes/4").Code)
}

func TestApp_RunStopsWithContext(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Address = "127.0.0.1:0"

	app, err := CreateServer(Options{Registry: noteRegistry(), Config: cfg})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx))
}
