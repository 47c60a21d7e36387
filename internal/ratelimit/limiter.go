package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the slice of the Redis API the limiter needs. Satisfied by
// *redis.Client; tests supply an in-memory fake.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// Limiter is a fixed-window counter backed by a shared key-value store.
// Best effort: it bounds how often unauthenticated endpoints can be hit
// before any external cost is incurred.
type Limiter struct {
	counter Counter
}

func NewLimiter(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// TryAcquire increments the window counter for key and reports whether the
// request is within limit. The first hit of a window sets its expiry.
func (l *Limiter) TryAcquire(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if l == nil || l.counter == nil {
		// No store configured: rate limiting is disabled.
		return true, nil
	}
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(window.Seconds()))
	n, err := l.counter.Incr(ctx, bucket).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.counter.Expire(ctx, bucket, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= limit, nil
}
