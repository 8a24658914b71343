// Package session keeps per-client key/value state across requests. The
// middleware loads a session into the request context; session parameters
// read from it.
package session

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when a session is not found
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when a session has expired
var ErrSessionExpired = errors.New("session expired")

// Store defines the interface for session storage backends
type Store interface {
	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session with the given TTL
	Set(ctx context.Context, sess *Session, ttl time.Duration) error

	// Delete removes a session
	Delete(ctx context.Context, id string) error

	// Close releases the store's resources
	Close() error
}

// Session is one client's state. Values are safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu        sync.RWMutex
	values    map[string]any
	dirty     bool
	destroyed bool
}

// New creates an empty session
func New(id string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		values:    make(map[string]any),
	}
}

// Restore rebuilds a stored session
func Restore(id string, values map[string]any, createdAt, expiresAt time.Time) *Session {
	if values == nil {
		values = make(map[string]any)
	}
	return &Session{ID: id, CreatedAt: createdAt, ExpiresAt: expiresAt, values: values}
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Get returns a value and whether it is set
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.dirty = true
}

// Delete removes a value
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.dirty = true
}

// Values returns a copy of all values
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Destroy marks the session for deletion at the end of the request
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

func (s *Session) state() (dirty, destroyed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty, s.destroyed
}

// Config holds session configuration
type Config struct {
	// CookieName is the name of the session cookie
	CookieName string

	// CookiePath is the path for the session cookie
	CookiePath string

	// CookieDomain is the domain for the session cookie
	CookieDomain string

	// TTL is the session lifetime
	TTL time.Duration

	// HTTPOnly prevents JavaScript access to the cookie
	HTTPOnly bool

	// Secure requires HTTPS for the cookie
	Secure bool

	// SameSite controls cross-site cookie behavior: "Strict", "Lax" or "None"
	SameSite string

	// Store is the session storage backend
	Store Store
}

// DefaultConfig returns default session configuration
func DefaultConfig(store Store) Config {
	return Config{
		CookieName: "waypoint_session",
		CookiePath: "/",
		TTL:        7 * 24 * time.Hour,
		HTTPOnly:   true,
		Secure:     true,
		SameSite:   "Lax",
		Store:      store,
	}
}
