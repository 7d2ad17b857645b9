package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter counts requests per fixed window in Redis so that
// every replica shares one budget
type DistributedRateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
}

var _ Limiter = (*DistributedRateLimiter)(nil)

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config RateLimitConfig, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = "pfcatalog:ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Config returns the limiter configuration
func (rl *DistributedRateLimiter) Config() RateLimitConfig {
	return rl.config
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts the request and reports whether the window still has room.
// The burst size widens the window budget.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	// The first request of a window starts its clock
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(rl.config.RequestsPerWindow+rl.config.BurstSize), nil
}

// Remaining returns the number of requests left in the current window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	budget := rl.config.RequestsPerWindow + rl.config.BurstSize

	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return budget, nil
	}
	if err != nil {
		return 0, err
	}
	return max(budget-count, 0), nil
}

// TTL returns the time until the window for key resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the window for key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}
