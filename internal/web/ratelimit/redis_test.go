package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisLimiter(RedisConfig{Client: client, Limit: limit, Window: time.Minute})
	require.NoError(t, err)
	return l, mr
}

func TestNewRedisLimiter_InvalidConfig(t *testing.T) {
	client := redis.NewClient(&redis.Options{})
	defer client.Close()

	tests := []struct {
		name   string
		config RedisConfig
		want   string
	}{
		{"nil client", RedisConfig{Limit: 1, Window: time.Minute}, "redis client is required"},
		{"zero limit", RedisConfig{Client: client, Window: time.Minute}, "limit must be greater than 0"},
		{"zero window", RedisConfig{Client: client, Limit: 1}, "window must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisLimiter(tt.config)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestRedisLimiter_Window(t *testing.T) {
	l, mr := newRedis(t, 2)
	ctx := context.Background()

	base := time.Now()
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}

	info, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)

	info, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)

	info, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, info.Allowed)

	assert.True(t, mr.Exists(DefaultRedisPrefix+"ip"))

	require.NoError(t, l.Reset(ctx, "ip"))
	info, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	l, _ := newRedis(t, 1)
	ctx := context.Background()

	now := time.Now()
	l.now = func() time.Time { return now }

	info, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	require.True(t, info.Allowed)

	now = now.Add(time.Minute + time.Second)
	info, err = l.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisLimiter_ConnectionError(t *testing.T) {
	l, mr := newRedis(t, 1)
	mr.Close()

	_, err := l.Allow(context.Background(), "ip")
	assert.ErrorContains(t, err, "rate limit check")
}
