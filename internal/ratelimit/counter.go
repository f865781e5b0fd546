package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var windowCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// WindowCounter counts events per key in fixed windows stored in Redis.
type WindowCounter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewWindowCounter returns a counter writing keys under prefix.
func NewWindowCounter(client *redis.Client, prefix string) (*WindowCounter, error) {
	if client == nil {
		return nil, errors.New("window counter requires a redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, errors.New("window counter requires a key prefix")
	}
	return &WindowCounter{client: client, prefix: prefix, now: time.Now}, nil
}

// Incr bumps the counter for key in the current window and returns the new
// count together with the time left in the window.
func (c *WindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		return 0, 0, errors.New("window must be at least 1ms")
	}
	nowMs := c.now().UTC().UnixMilli()
	slot := nowMs / windowMs
	remaining := time.Duration((slot+1)*windowMs-nowMs) * time.Millisecond
	redisKey := fmt.Sprintf("%s:%s:%d", c.prefix, key, slot)
	count, err := windowCounterScript.Run(ctx, c.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return 0, 0, fmt.Errorf("incr window counter: %w", err)
	}
	return count, remaining, nil
}

// SanitizeSegment makes s safe to embed in a colon-separated Redis key.
func SanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(s)
}
