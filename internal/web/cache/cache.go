// Package cache stores rendered GET responses and answers conditional
// requests with 304 Not Modified. Entries live in memory or in Redis.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get for absent or expired keys
var ErrMiss = errors.New("cache miss")

// Store holds encoded responses by key
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
