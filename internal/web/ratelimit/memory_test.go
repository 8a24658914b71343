package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T, limit int, window time.Duration) (*MemoryLimiter, *time.Time) {
	t.Helper()
	l, err := NewMemoryLimiter(MemoryConfig{Limit: limit, Window: window})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestNewMemoryLimiter_InvalidConfig(t *testing.T) {
	_, err := NewMemoryLimiter(MemoryConfig{Limit: 0, Window: time.Minute})
	assert.EqualError(t, err, "limit must be greater than 0")

	_, err = NewMemoryLimiter(MemoryConfig{Limit: 1})
	assert.EqualError(t, err, "window must be greater than 0")
}

func TestMemoryLimiter_ExhaustsBucket(t *testing.T) {
	l, _ := newMemory(t, 3, time.Minute)
	ctx := context.Background()

	for i := range 3 {
		info, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, info.Allowed, "request %d", i)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	info, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)

	other, err := l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestMemoryLimiter_Refills(t *testing.T) {
	l, now := newMemory(t, 2, time.Minute)
	ctx := context.Background()

	for range 2 {
		_, _ = l.Allow(ctx, "k")
	}
	info, _ := l.Allow(ctx, "k")
	require.False(t, info.Allowed)
	assert.Equal(t, now.Add(time.Minute), info.ResetAt)

	*now = now.Add(30 * time.Second)
	info, _ = l.Allow(ctx, "k")
	assert.True(t, info.Allowed)

	info, _ = l.Allow(ctx, "k")
	assert.False(t, info.Allowed)

	*now = now.Add(10 * time.Minute)
	info, _ = l.Allow(ctx, "k")
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)
}
