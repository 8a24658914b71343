// Package config loads waypoint settings from defaults, an optional
// waypoint.yaml and WAYPOINT_ environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WAYPOINT_SERVER_ADDRESS
const EnvPrefix = "WAYPOINT"

// Config represents the waypoint configuration
type Config struct {
	Development         bool   `mapstructure:"development"`
	DefaultErrorHandler bool   `mapstructure:"default_error_handler"`
	Prefix              string `mapstructure:"prefix"`

	CORS           CORSConfig                `mapstructure:"cors"`
	Defaults       DefaultsConfig            `mapstructure:"defaults"`
	ErrorOverrides map[string]map[string]any `mapstructure:"error_overrides"`

	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// CORSConfig enables CORS handling ahead of every middleware
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// DefaultsConfig holds the response and parameter defaults actions inherit
type DefaultsConfig struct {
	NullHTTPCode      int                 `mapstructure:"null_http_code"`
	UndefinedHTTPCode int                 `mapstructure:"undefined_http_code"`
	ParamOptions      ParamDefaultsConfig `mapstructure:"param_options"`
}

// ParamDefaultsConfig holds parameter defaults
type ParamDefaultsConfig struct {
	Required bool `mapstructure:"required"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	TLSCert         string        `mapstructure:"tls_cert"`
	TLSKey          string        `mapstructure:"tls_key"`

	// PprofPath mounts the runtime profiler; empty disables it
	PprofPath string `mapstructure:"pprof_path"`
}

// LogConfig selects the logger level and encoding
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig selects the session store and cookie settings
type SessionConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Store is "memory", "redis" or "sql"
	Store string `mapstructure:"store"`

	// Driver and DSN configure the sql store: "postgres", "pgx" or "sqlite3"
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`

	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
	SameSite   string        `mapstructure:"same_site"`
}

// UploadsConfig configures file parameters
type UploadsConfig struct {
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	MaxTotalSize int64    `mapstructure:"max_total_size"`
	Dir          string   `mapstructure:"dir"`
	AllowedTypes []string `mapstructure:"allowed_types"`
	AllowedExts  []string `mapstructure:"allowed_exts"`
}

// AuthConfig configures JWT issuing. An empty secret disables bearer auth.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Issuer   string        `mapstructure:"issuer"`
}

// RateLimitConfig configures the global rate limit
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Store is "memory" or "redis"
	Store  string        `mapstructure:"store"`
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// CacheConfig configures caching of anonymous GET responses
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Store is "memory" or "redis"
	Store string        `mapstructure:"store"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// RedisConfig is shared by the redis session store, rate limiter and cache
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("development", false)
	v.SetDefault("default_error_handler", true)
	v.SetDefault("prefix", "")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposed_headers", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("defaults.null_http_code", 0)
	v.SetDefault("defaults.undefined_http_code", 0)
	v.SetDefault("defaults.param_options.required", false)
	v.SetDefault("error_overrides", map[string]any{})

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.pprof_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("session.enabled", false)
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.driver", "")
	v.SetDefault("session.dsn", "")
	v.SetDefault("session.table", "sessions")
	v.SetDefault("session.cookie_name", "waypoint_session")
	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("session.secure", true)
	v.SetDefault("session.same_site", "Lax")

	v.SetDefault("uploads.max_file_size", 10<<20)
	v.SetDefault("uploads.max_total_size", 50<<20)
	v.SetDefault("uploads.dir", "")
	v.SetDefault("uploads.allowed_types", []string{})
	v.SetDefault("uploads.allowed_exts", []string{})

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.issuer", "waypoint")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.store", "memory")
	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.store", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads the configuration. path names a config file; when empty,
// waypoint.yaml (or .yml) in the working directory is used if present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("waypoint")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	var errs []error
	if c.Prefix != "" {
		if !strings.HasPrefix(c.Prefix, "/") {
			errs = append(errs, fmt.Errorf("prefix must start with '/', got: %s", c.Prefix))
		}
		if strings.HasSuffix(c.Prefix, "/") {
			errs = append(errs, fmt.Errorf("prefix must not end with '/', got: %s", c.Prefix))
		}
	}

	for key, code := range map[string]int{
		"defaults.null_http_code":      c.Defaults.NullHTTPCode,
		"defaults.undefined_http_code": c.Defaults.UndefinedHTTPCode,
	} {
		if code != 0 && (code < 100 || code > 599) {
			errs = append(errs, fmt.Errorf("%s must be an HTTP status, got: %d", key, code))
		}
	}

	if !slices.Contains([]string{"json", "console"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got: %s", c.Log.Format))
	}

	if c.Session.Enabled {
		switch c.Session.Store {
		case "memory", "redis":
		case "sql":
			if c.Session.Driver == "" || c.Session.DSN == "" {
				errs = append(errs, errors.New("session.driver and session.dsn are required for the sql store"))
			}
		default:
			errs = append(errs, fmt.Errorf("session.store must be memory, redis or sql, got: %s", c.Session.Store))
		}
		if c.Session.TTL <= 0 {
			errs = append(errs, errors.New("session.ttl must be positive"))
		}
	}

	if c.RateLimit.Enabled {
		if !slices.Contains([]string{"memory", "redis"}, c.RateLimit.Store) {
			errs = append(errs, fmt.Errorf("rate_limit.store must be memory or redis, got: %s", c.RateLimit.Store))
		}
		if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.limit and rate_limit.window must be positive"))
		}
	}

	if c.Cache.Enabled {
		if !slices.Contains([]string{"memory", "redis"}, c.Cache.Store) {
			errs = append(errs, fmt.Errorf("cache.store must be memory or redis, got: %s", c.Cache.Store))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, errors.New("cache.ttl must be positive"))
		}
	}

	if c.Server.PprofPath != "" && (!strings.HasPrefix(c.Server.PprofPath, "/") || strings.HasSuffix(c.Server.PprofPath, "/")) {
		errs = append(errs, fmt.Errorf("server.pprof_path must start and not end with '/', got: %s", c.Server.PprofPath))
	}

	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		errs = append(errs, errors.New("server.tls_cert and server.tls_key must be set together"))
	}
	return errors.Join(errs...)
}
