package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// RateLimiter is a fixed-window request counter per client, shared by every
// API instance through Redis.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

func New(rdb *redis.Client, perMinute int64) *RateLimiter {
	return &RateLimiter{redis: rdb, limit: perMinute, window: time.Minute}
}

func (r *RateLimiter) Allow(ctx context.Context, client string, now time.Time) (allowed bool, used int64, resetAt time.Time, err error) {
	windowStart := now.UTC().Truncate(r.window)
	windowEnd := windowStart.Add(r.window)
	ttl := int64(windowEnd.Sub(now.UTC()).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	key := fmt.Sprintf("admindash:ratelimit:%s:%s", client, windowStart.Format("200601021504"))
	res, err := incrWithTTLScript.Run(ctx, r.redis, []string{key}, ttl).Int64()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit script: %w", err)
	}
	return res <= r.limit, res, windowEnd, nil
}

func (r *RateLimiter) Limit() int64 {
	return r.limit
}
