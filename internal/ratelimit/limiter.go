package ratelimit

import (
	"context"
	"sync"
	"time"
)

type LimitInfo struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*LimitInfo, error)
}

type counter struct {
	hits    int
	resetAt time.Time
}

type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (*LimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(window)}
		l.counters[key] = c
	}
	c.hits++

	return info(c.hits, limit, c.resetAt), nil
}

// Sweep drops expired windows until ctx is done.
func (l *MemoryLimiter) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, c := range l.counters {
				if !now.Before(c.resetAt) {
					delete(l.counters, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func info(hits, limit int, resetAt time.Time) *LimitInfo {
	remaining := limit - hits
	if remaining < 0 {
		remaining = 0
	}
	return &LimitInfo{
		Allowed:   hits <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: resetAt,
	}
}
