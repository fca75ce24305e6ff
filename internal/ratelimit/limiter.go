package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore is the counter backend. Incr returns the window count after
// incrementing; TTL returns how long until the window resets.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, window time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter. It fails open: when the store is down
// requests pass, because checkout availability beats strict limiting.
type Limiter struct {
	store  CounterStore
	logger *slog.Logger
}

func NewLimiter(store CounterStore, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger,
	}
}

// Check counts one hit against the key's window and reports whether the
// request may proceed.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) Result {
	count, err := l.store.Incr(ctx, key)
	if err != nil {
		l.logger.Warn("rate limiter store unavailable, allowing request", "key", key, "error", err)
		return Result{Allowed: true, Remaining: limit}
	}

	if count == 1 {
		if err := l.store.Expire(ctx, key, window); err != nil {
			l.logger.Warn("rate limiter expire failed", "key", key, "error", err)
		}
	}

	if count > limit {
		retryAfter, err := l.store.TTL(ctx, key)
		if err != nil || retryAfter < 0 {
			retryAfter = window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}

	return Result{Allowed: true, Remaining: limit - count}
}

// Key builds a namespaced counter key per route and caller.
func Key(scope string, userID int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", scope, userID)
}

// RedisCounter backs the limiter with redis.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *RedisCounter) Expire(ctx context.Context, key string, window time.Duration) error {
	return r.client.Expire(ctx, key, window).Err()
}

func (r *RedisCounter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}
