package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// FixedWindowLimiter limits requests per key in a fixed time window shared
// by every server instance through Redis.
type FixedWindowLimiter struct {
	limit   int
	window  time.Duration
	counter *WindowCounter
}

// NewFixedWindowLimiter creates a limiter allowing limit requests per
// window for each key.
func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	counter, err := NewWindowCounter(client, prefix)
	if err != nil {
		return nil, err
	}
	return &FixedWindowLimiter{limit: limit, window: window, counter: counter}, nil
}

// Allow reports whether key is within quota. Redis failures fail closed
// and are returned so callers can log them.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	count, remaining, err := l.counter.Incr(ctx, SanitizeSegment(key), l.window)
	if err != nil {
		return Decision{Allowed: false, RetryAfter: l.window}, err
	}
	if count > int64(l.limit) {
		return Decision{Allowed: false, RetryAfter: remaining}, nil
	}
	return Decision{Allowed: true}, nil
}
