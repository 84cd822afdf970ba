package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/moviemate/authkeeper/internal/common"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter enforces a fixed-window limit on a shared Redis counter, so
// multiple server instances see one budget per key.
type RedisLimiter struct {
	client redis.UniversalClient
	max    int
	window time.Duration
}

// NewRedisLimiter returns a limiter allowing max attempts per key per window,
// counted on the given Redis client.
func NewRedisLimiter(client redis.UniversalClient, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, max: max, window: window}
}

// Allow increments the key's counter and returns common.ErrRateLimited once
// the counter exceeds the budget. The counter expires with the window, which
// starts at the first hit.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	count, err := l.client.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		return fmt.Errorf("rate limiter redis error: %w", err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.client.Expire(ctx, "ratelimit:"+key, l.window).Err(); err != nil {
			return fmt.Errorf("rate limiter redis error: %w", err)
		}
	}

	if count > int64(l.max) {
		return common.ErrRateLimited
	}
	return nil
}
