package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.DefaultErrorHandler)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "waypoint_session", cfg.Session.CookieName)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 100, cfg.RateLimit.Limit)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := `
development: true
prefix: /api
defaults:
  null_http_code: 404
  param_options:
    required: true
error_overrides:
  NotFoundError:
    hint: check the id
server:
  address: ":9090"
  request_timeout: 2s
session:
  enabled: true
  store: redis
  ttl: 1h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "waypoint.yaml"), []byte(yaml), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Development)
	assert.Equal(t, "/api", cfg.Prefix)
	assert.Equal(t, 404, cfg.Defaults.NullHTTPCode)
	assert.True(t, cfg.Defaults.ParamOptions.Required)
	assert.Equal(t, "check the id", cfg.ErrorOverrides["notfounderror"]["hint"])
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("WAYPOINT_PREFIX", "/v1")
	t.Setenv("WAYPOINT_SERVER_ADDRESS", ":7070")
	t.Setenv("WAYPOINT_SERVER_WRITE_TIMEOUT", "3s")
	t.Setenv("WAYPOINT_AUTH_SECRET", "s3cret")
	t.Setenv("WAYPOINT_DEFAULT_ERROR_HANDLER", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/v1", cfg.Prefix)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 3*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.False(t, cfg.DefaultErrorHandler)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"prefix without slash", func(c *Config) { c.Prefix = "api" }, "prefix must start with '/'"},
		{"prefix trailing slash", func(c *Config) { c.Prefix = "/api/" }, "prefix must not end with '/'"},
		{"bad null code", func(c *Config) { c.Defaults.NullHTTPCode = 42 }, "defaults.null_http_code must be an HTTP status"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad session store", func(c *Config) {
			c.Session.Enabled = true
			c.Session.Store = "disk"
		}, "session.store"},
		{"sql store without dsn", func(c *Config) {
			c.Session.Enabled = true
			c.Session.Store = "sql"
			c.Session.Driver = "sqlite3"
		}, "session.driver and session.dsn"},
		{"disabled session ignored", func(c *Config) { c.Session.Store = "disk" }, ""},
		{"bad rate limit", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Limit = 0
		}, "rate_limit.limit"},
		{"bad cache store", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Store = "disk"
		}, "cache.store"},
		{"bad cache ttl", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.TTL = 0
		}, "cache.ttl"},
		{"pprof path", func(c *Config) { c.Server.PprofPath = "debug" }, "server.pprof_path"},
		{"half tls", func(c *Config) { c.Server.TLSCert = "cert.pem" }, "tls_cert and server.tls_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
