// Package ratelimit throttles login and confirmation attempts with a
// fixed window counter in redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLimited     = errors.New("rate limited")
	ErrUnavailable = errors.New("limiter unavailable")
)

type Limiter interface {
	// Allow counts one attempt for key and returns ErrLimited once the
	// window's budget is spent.
	Allow(ctx context.Context, key string) error
}

type RedisLimiter struct {
	redis       *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, maxAttempts int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix, maxAttempts: maxAttempts, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	k := l.prefix + ":" + key
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(l.maxAttempts) {
		return ErrLimited
	}
	return nil
}

// NoopLimiter allows everything. Used when no redis is configured.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) error { return nil }
