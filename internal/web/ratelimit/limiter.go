// Package ratelimit counts requests per key. The rate limit middleware turns
// a denied request into a 429 error.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (Info, error)
}

// Info is the limiter state after a request was counted
type Info struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}
