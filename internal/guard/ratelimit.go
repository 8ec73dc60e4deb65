package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tradepost/marketplace/internal/domain"
)

// RateLimiter is an admission-control check keyed by caller identity.
type RateLimiter interface {
	Check(ctx context.Context, key string) domain.GuardResult
}

// RedisRateLimiter is a fixed-window limiter backed by Redis INCR+EXPIRE,
// shared across instances. When Redis is unreachable the failOpen flag
// decides explicitly between admitting and rejecting.
type RedisRateLimiter struct {
	client   *redis.Client
	limit    int64
	window   time.Duration
	failOpen bool
	logger   *slog.Logger
}

// NewRedisRateLimiter creates a Redis-backed rate limiter.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration, failOpen bool, logger *slog.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		limit:    int64(limit),
		window:   window,
		failOpen: failOpen,
		logger:   logger,
	}
}

// Check counts the request against the caller's current window.
func (rl *RedisRateLimiter) Check(ctx context.Context, key string) domain.GuardResult {
	redisKey := "ratelimit:" + key

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logger.Error("rate limiter redis unavailable", "error", err, "fail_open", rl.failOpen)
		if rl.failOpen {
			return domain.GuardResult{Allowed: true, Guard: "rate_limiter"}
		}
		return domain.GuardResult{
			Allowed: false,
			Reason:  "rate limiter unavailable",
			Guard:   "rate_limiter",
		}
	}

	if count == 1 {
		if err := rl.client.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			rl.logger.Error("rate limiter expire failed", "error", err, "key", redisKey)
		}
	}

	if count > rl.limit {
		retryAfter := int(rl.window.Seconds())
		if ttl, err := rl.client.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
			retryAfter = int(ttl.Seconds())
		}
		return domain.GuardResult{
			Allowed:           false,
			Reason:            fmt.Sprintf("rate limit exceeded: %d/%s", rl.limit, rl.window),
			Guard:             "rate_limiter",
			RetryAfterSeconds: retryAfter,
		}
	}

	return domain.GuardResult{Allowed: true, Guard: "rate_limiter"}
}

// MemoryRateLimiter implements a sliding window rate limiter for
// single-instance deployments and tests.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
}

// NewMemoryRateLimiter creates an in-process rate limiter with the given limit per window.
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

// Check returns a GuardResult indicating whether the key is within rate limits.
func (rl *MemoryRateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	// Remove expired entries
	entries := rl.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		return domain.GuardResult{
			Allowed:           false,
			Reason:            fmt.Sprintf("rate limit exceeded: %d/%s", rl.limit, rl.window),
			Guard:             "rate_limiter",
			RetryAfterSeconds: int(rl.window.Seconds()),
		}
	}

	rl.windows[key] = append(valid, now)
	return domain.GuardResult{Allowed: true, Guard: "rate_limiter"}
}
