package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes every session key written to Redis
const DefaultKeyPrefix = "waypoint:session:"

// RedisStore is a Redis-backed session store
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig(addr string) RedisConfig {
	return RedisConfig{
		Addr:      addr,
		PoolSize:  100,
		KeyPrefix: DefaultKeyPrefix,
	}
}

// NewRedisStore connects a new Redis session store
func NewRedisStore(config RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return NewRedisStoreFromClient(client, config.KeyPrefix)
}

// NewRedisStoreFromClient creates a store over an existing client
func NewRedisStoreFromClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

type redisRecord struct {
	Values    map[string]any `json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Get retrieves a session from Redis
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if time.Now().After(rec.ExpiresAt) {
		s.client.Del(ctx, s.key(id))
		return nil, ErrSessionExpired
	}
	return Restore(id, rec.Values, rec.CreatedAt, rec.ExpiresAt), nil
}

// Set stores a session with the TTL as the key expiry
func (s *RedisStore) Set(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(redisRecord{
		Values:    sess.Values(),
		CreatedAt: sess.CreatedAt,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a session from Redis
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
