package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		got, err := l.Allow(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, got.Allowed, "hit %d", i)
		assert.Equal(t, 3-i, got.Remaining)
	}

	got, _ := l.Allow(ctx, "k", 3, time.Minute)
	assert.False(t, got.Allowed)
	assert.Equal(t, 0, got.Remaining)
	assert.Equal(t, now.Add(time.Minute), got.ResetTime)

	other, _ := l.Allow(ctx, "other", 3, time.Minute)
	assert.True(t, other.Allowed, "keys are counted independently")

	now = now.Add(time.Minute)
	got, _ = l.Allow(ctx, "k", 3, time.Minute)
	assert.True(t, got.Allowed, "a new window starts after reset")
	assert.Equal(t, 2, got.Remaining)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	l := NewMemoryLimiter()
	l.Allow(context.Background(), "k", 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Sweep(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.counters) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	l := NewRedisLimiter(client)
	key := uuid.NewString()

	for i := 0; i < 2; i++ {
		got, err := l.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, got.Allowed)
	}

	got, err := l.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, got.Allowed)
	assert.WithinDuration(t, time.Now().Add(time.Minute), got.ResetTime, 2*time.Second)
}
