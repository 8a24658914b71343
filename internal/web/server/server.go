// Package server runs an http.Handler with production timeouts and shuts it
// down gracefully when its context ends.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds server configuration
type Config struct {
	// Address is the listen address (e.g. ":8080")
	Address string

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int

	// ShutdownTimeout bounds the graceful shutdown
	ShutdownTimeout time.Duration

	// TLS serves HTTPS when set
	TLS *TLSConfig
}

// TLSConfig locates the certificate pair
type TLSConfig struct {
	CertFile   string
	KeyFile    string
	MinVersion uint16
}

// DefaultConfig returns production-ready server settings
func DefaultConfig() Config {
	return Config{
		Address:           ":8080",
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Hook releases a resource once the server stopped accepting requests
type Hook func(ctx context.Context) error

// Server is an HTTP server with graceful shutdown
type Server struct {
	http     *http.Server
	config   Config
	logger   *zap.Logger
	listener net.Listener

	mu    sync.Mutex
	hooks []Hook
	once  sync.Once
	err   error
}

// New creates a server for handler
func New(config Config, handler http.Handler, logger *zap.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	srv := &http.Server{
		Addr:              config.Address,
		Handler:           handler,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		MaxHeaderBytes:    config.MaxHeaderBytes,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	if config.TLS != nil {
		srv.TLSConfig = buildTLSConfig(config.TLS)
	}
	return &Server{http: srv, config: config, logger: logger}, nil
}

// OnShutdown registers a hook run after the server stopped. Hooks run in
// registration order.
func (s *Server) OnShutdown(hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Listen binds the listen address. Run calls it when needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or the configured one before Listen
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Run serves until ctx ends or serving fails, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", zap.String("addr", s.Addr()), zap.Bool("tls", s.config.TLS != nil))
		var err error
		if s.config.TLS != nil {
			err = s.http.ServeTLS(s.listener, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.http.Serve(s.listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops accepting requests, waits for in-flight ones, then runs the
// hooks. Later calls return the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() {
		s.logger.Info("shutting down", zap.Duration("timeout", s.config.ShutdownTimeout))

		var errs []error
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}

		s.mu.Lock()
		hooks := append([]Hook(nil), s.hooks...)
		s.mu.Unlock()
		for i, hook := range hooks {
			if err := hook(ctx); err != nil {
				s.logger.Warn("shutdown hook failed", zap.Int("hook", i), zap.Error(err))
				errs = append(errs, err)
			}
		}

		s.err = errors.Join(errs...)
		if s.err == nil {
			s.logger.Info("server stopped")
		}
	})
	return s.err
}

func buildTLSConfig(config *TLSConfig) *tls.Config {
	minVersion := config.MinVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	return &tls.Config{
		MinVersion: minVersion,
		NextProtos: []string{"h2", "http/1.1"},
	}
}
