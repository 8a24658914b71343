package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryLimiter is an in-process token bucket per key. Each bucket holds
// Limit tokens and refills completely over Window.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// MemoryConfig configures a MemoryLimiter
type MemoryConfig struct {
	Limit  int
	Window time.Duration

	// CleanupInterval drops idle buckets (0 = never)
	CleanupInterval time.Duration
}

// NewMemoryLimiter creates a token bucket limiter
func NewMemoryLimiter(config MemoryConfig) (*MemoryLimiter, error) {
	if config.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if config.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}
	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		limit:   config.Limit,
		window:  config.Window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go l.cleanup(config.CleanupInterval)
	}
	return l, nil
}

// Allow takes one token from key's bucket
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.limit), lastRefill: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		refill := float64(elapsed) * float64(l.limit) / float64(l.window)
		b.tokens = min(float64(l.limit), b.tokens+refill)
		b.lastRefill = now
	}

	info := Info{Limit: l.limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = int(b.tokens)

	missing := float64(l.limit) - b.tokens
	info.ResetAt = now.Add(time.Duration(missing * float64(l.window) / float64(l.limit)))
	return info, nil
}

// Close stops the cleanup loop
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

func (l *MemoryLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.buckets {
				if now.Sub(b.lastRefill) > 2*l.window {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
