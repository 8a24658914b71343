package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes every counter key written to Redis
const DefaultRedisPrefix = "waypoint:ratelimit:"

// slidingWindow trims the window, then records the request when under the
// limit. It returns {allowed, count}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, ttl)
	return {1, current + 1}
end
return {0, current}
`)

// RedisLimiter is a sliding window limiter shared by every instance using
// the same Redis
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// RedisConfig configures a RedisLimiter
type RedisConfig struct {
	Client redis.UniversalClient
	Limit  int
	Window time.Duration
	Prefix string
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(config RedisConfig) (*RedisLimiter, error) {
	switch {
	case config.Client == nil:
		return nil, errors.New("redis client is required")
	case config.Limit <= 0:
		return nil, errors.New("limit must be greater than 0")
	case config.Window <= 0:
		return nil, errors.New("window must be greater than 0")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultRedisPrefix
	}
	return &RedisLimiter{
		client: config.Client,
		limit:  config.Limit,
		window: config.Window,
		prefix: config.Prefix,
		now:    time.Now,
	}, nil
}

// Allow records a request for key when the window has room
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Info, error) {
	now := l.now()
	res, err := slidingWindow.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixNano(),
		now.Add(-l.window).UnixNano(),
		l.limit,
		l.window.Milliseconds(),
		strconv.FormatInt(now.UnixNano(), 10),
	).Int64Slice()
	if err != nil {
		return Info{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) != 2 {
		return Info{}, fmt.Errorf("rate limit check: unexpected reply %v", res)
	}

	return Info{
		Limit:     l.limit,
		Remaining: max(l.limit-int(res[1]), 0),
		ResetAt:   now.Add(l.window),
		Allowed:   res[0] == 1,
	}, nil
}

// Reset forgets every request counted for key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
