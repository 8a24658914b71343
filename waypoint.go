// Package waypoint serves declared controllers over HTTP. Controllers,
// actions, parameters and middleware are declared on a metadata.Registry;
// CreateServer builds them and binds every action to the chi driver.
package waypoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/waypoint/internal/config"
	"github.com/conduit-lang/waypoint/internal/web/auth"
	"github.com/conduit-lang/waypoint/internal/web/cache"
	"github.com/conduit-lang/waypoint/internal/web/middleware"
	"github.com/conduit-lang/waypoint/internal/web/profiling"
	"github.com/conduit-lang/waypoint/internal/web/ratelimit"
	"github.com/conduit-lang/waypoint/internal/web/request"
	"github.com/conduit-lang/waypoint/internal/web/router"
	"github.com/conduit-lang/waypoint/internal/web/server"
	"github.com/conduit-lang/waypoint/internal/web/session"
	"github.com/conduit-lang/waypoint/pkg/web/response"
	"github.com/conduit-lang/waypoint/runtime/container"
	"github.com/conduit-lang/waypoint/runtime/execution"
	"github.com/conduit-lang/waypoint/runtime/metadata"
)

// Options configures CreateServer. Only Registry is required.
type Options struct {
	Registry *metadata.Registry

	// Config defaults to config.Default()
	Config *config.Config

	// Controllers and Middlewares restrict registration to the listed
	// types; empty registers everything declared
	Controllers []reflect.Type
	Middlewares []reflect.Type

	// Container resolves controllers and typed middleware. It is wrapped
	// over the default container with ContainerOptions.
	Container        container.Container
	ContainerOptions container.Options

	Logger   *zap.Logger
	Renderer *response.Renderer

	// Sessions overrides the store chosen by session.store
	Sessions session.Store
	// Limiter overrides the limiter chosen by rate_limit.store
	Limiter ratelimit.Limiter
	// Cache overrides the response cache chosen by cache.store
	Cache cache.Store
	// Redis is shared by redis-backed stores instead of dialing redis.addr
	Redis redis.UniversalClient
	// DB backs the sql session store instead of opening session.dsn
	DB *sql.DB
}

// App is a built application. It is an http.Handler.
type App struct {
	Config      *config.Config
	Controllers []*metadata.Controller

	// Tokens issues and verifies bearer tokens; nil unless auth.secret is set
	Tokens *auth.TokenService

	handler http.Handler
	driver  *router.Driver
	logger  *zap.Logger
	rdb     redis.UniversalClient
	closers []func() error
}

// CreateServer builds the registry's controllers and middleware and wires
// them to a chi driver. The driver is wrapped in recovery, request id and
// logging middleware, plus the timeout, response cache and session layers
// the configuration enables.
func CreateServer(opts Options) (app *App, err error) {
	if opts.Registry == nil {
		return nil, errors.New("waypoint: a registry is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("waypoint: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app = &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if cfg.Auth.Secret != "" {
		app.Tokens, err = auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
		if err != nil {
			return nil, fmt.Errorf("waypoint: %w", err)
		}
	}

	c := container.Container(container.NewDefault())
	if opts.Container != nil {
		c = container.Use(opts.Container, c, opts.ContainerOptions)
	}

	driverOpts := router.Options{
		Prefix:              cfg.Prefix,
		Development:         cfg.Development,
		DisableErrorHandler: !cfg.DefaultErrorHandler,
		ErrorOverrides:      response.Overrides(cfg.ErrorOverrides),
		Renderer:            opts.Renderer,
		Container:           c,
		Logger:              logger,
		MaxBodyBytes:        cfg.Server.MaxBodyBytes,
		Uploads: request.UploadConfig{
			MaxFileSize:   cfg.Uploads.MaxFileSize,
			MaxTotalSize:  cfg.Uploads.MaxTotalSize,
			AllowedTypes:  cfg.Uploads.AllowedTypes,
			AllowedExts:   cfg.Uploads.AllowedExts,
			Dir:           cfg.Uploads.Dir,
			GenerateNames: true,
		},
	}
	if cfg.CORS.Enabled {
		driverOpts.CORS = &middleware.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}
	}
	app.driver = router.New(driverOpts)

	builder := metadata.NewBuilder(opts.Registry, metadata.BuilderOptions{
		NullCode:      cfg.Defaults.NullHTTPCode,
		UndefinedCode: cfg.Defaults.UndefinedHTTPCode,
		ParamRequired: cfg.Defaults.ParamOptions.Required,
	})
	x := execution.NewExecutor(app.driver, builder, execution.NewEngine(app.driver, c, logger), logger)

	if err := x.Initialize(); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Enabled || opts.Limiter != nil {
		limiter, err := app.limiter(opts)
		if err != nil {
			return nil, err
		}
		key := middleware.PrincipalOrIP
		if app.Tokens != nil {
			key = middleware.TokenOrIP(app.Tokens)
		}
		def := &metadata.MiddlewareDef{
			Middleware: middleware.RateLimit(middleware.RateLimitConfig{
				Limiter:  limiter,
				Key:      key,
				FailOpen: true,
				Logger:   logger,
			}),
			Global:   true,
			Priority: math.MaxInt,
			Phase:    metadata.PhaseBefore,
		}
		if err := app.driver.RegisterMiddleware(def); err != nil {
			return nil, err
		}
	}
	if err := x.RegisterMiddlewares(metadata.PhaseBefore, opts.Middlewares...); err != nil {
		return nil, err
	}
	if app.Controllers, err = x.RegisterControllers(opts.Controllers...); err != nil {
		return nil, err
	}
	if err := x.RegisterMiddlewares(metadata.PhaseAfter, opts.Middlewares...); err != nil {
		return nil, err
	}

	chain := middleware.NewChain(
		middleware.Recovery(logger, middleware.JSONErrors(cfg.Development, response.Overrides(cfg.ErrorOverrides))),
		middleware.RequestID(),
		middleware.Logging(logger),
	)
	if cfg.Server.RequestTimeout > 0 {
		chain.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}
	if cfg.Cache.Enabled || opts.Cache != nil {
		store := app.cacheStore(opts)
		chain.Use(cache.Middleware(cache.Config{Store: store, TTL: cfg.Cache.TTL, Logger: logger}))
	}
	if cfg.Session.Enabled || opts.Sessions != nil {
		store, err := app.sessionStore(opts)
		if err != nil {
			return nil, err
		}
		sc := session.DefaultConfig(store)
		sc.CookieName = cfg.Session.CookieName
		sc.TTL = cfg.Session.TTL
		sc.Secure = cfg.Session.Secure
		sc.SameSite = cfg.Session.SameSite
		chain.Use(session.Middleware(sc, logger))
	}
	app.handler = chain.Then(app.driver)
	if cfg.Server.PprofPath != "" {
		app.handler = profiling.Mount(cfg.Server.PprofPath, app.handler)
	}

	logger.Info("application built",
		zap.Int("controllers", len(app.Controllers)),
		zap.Int("routes", len(app.driver.Routes())),
	)
	return app, nil
}

func (a *App) sessionStore(opts Options) (session.Store, error) {
	if opts.Sessions != nil {
		return opts.Sessions, nil
	}
	cfg := a.Config.Session

	var store session.Store
	switch cfg.Store {
	case "redis":
		store = session.NewRedisStoreFromClient(a.redis(opts), "")
	case "sql":
		dialect, err := session.DialectFor(cfg.Driver)
		if err != nil {
			return nil, err
		}
		db := opts.DB
		if db == nil {
			if db, err = sql.Open(cfg.Driver, cfg.DSN); err != nil {
				return nil, fmt.Errorf("open session database: %w", err)
			}
			a.closers = append(a.closers, db.Close)
		}
		sqlCfg := session.DefaultSQLConfig(db, dialect)
		sqlCfg.Table = cfg.Table
		sqlCfg.Logger = a.logger

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := session.NewSQLStore(ctx, sqlCfg)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = session.NewMemoryStore(time.Minute)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *App) cacheStore(opts Options) cache.Store {
	if opts.Cache != nil {
		return opts.Cache
	}
	if a.Config.Cache.Store == "redis" {
		return cache.NewRedisStore(a.redis(opts), "")
	}
	store := cache.NewMemoryStore(time.Minute)
	a.closers = append(a.closers, store.Close)
	return store
}

func (a *App) limiter(opts Options) (ratelimit.Limiter, error) {
	if opts.Limiter != nil {
		return opts.Limiter, nil
	}
	cfg := a.Config.RateLimit
	if cfg.Store == "redis" {
		return ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Client: a.redis(opts),
			Limit:  cfg.Limit,
			Window: cfg.Window,
		})
	}
	l, err := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
		Limit:           cfg.Limit,
		Window:          cfg.Window,
		CleanupInterval: cfg.Window,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, l.Close)
	return l, nil
}

// redis returns the shared client, dialing redis.addr once
func (a *App) redis(opts Options) redis.UniversalClient {
	if a.rdb != nil {
		return a.rdb
	}
	if opts.Redis != nil {
		a.rdb = opts.Redis
		return a.rdb
	}
	client := redis.NewClient(&redis.Options{
		Addr:         a.Config.Redis.Addr,
		Password:     a.Config.Redis.Password,
		DB:           a.Config.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	a.rdb = client
	a.closers = append(a.closers, client.Close)
	return client
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Routes lists the registered action routes
func (a *App) Routes() []router.RouteInfo {
	return a.driver.Routes()
}

// Run serves the app on server.address until ctx ends, then shuts down
// gracefully and releases the app's stores
func (a *App) Run(ctx context.Context) error {
	sc := server.DefaultConfig()
	sc.Address = a.Config.Server.Address
	sc.ReadTimeout = a.Config.Server.ReadTimeout
	sc.WriteTimeout = a.Config.Server.WriteTimeout
	sc.IdleTimeout = a.Config.Server.IdleTimeout
	sc.ShutdownTimeout = a.Config.Server.ShutdownTimeout
	if a.Config.Server.TLSCert != "" {
		sc.TLS = &server.TLSConfig{CertFile: a.Config.Server.TLSCert, KeyFile: a.Config.Server.TLSKey}
	}

	srv, err := server.New(sc, a, a.logger)
	if err != nil {
		return err
	}
	srv.OnShutdown(func(context.Context) error { return a.Close() })
	return srv.Run(ctx)
}

// Close releases the stores and connections the app opened, most recent first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
