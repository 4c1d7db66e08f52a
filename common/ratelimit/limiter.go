package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	rediscommon "github.com/lyzr/pubmigrate/common/redis"
)

//go:embed rate_limit.lua
var rateLimitScript string

// Limiter blocks until the caller may issue one more request
type Limiter interface {
	Wait(ctx context.Context) error
}

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// NewLocal returns an in-process token bucket allowing perSecond requests.
// A non-positive rate disables limiting.
func NewLocal(perSecond float64) Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed      bool          // Whether the request is allowed
	CurrentCount int64         // Current count in the window
	Limit        int64         // The limit that was checked
	RetryAfter   time.Duration // Time until the window resets (0 if allowed)
}

// RedisLimiter shares one request budget between every process using the
// same key, with a fixed window counter kept in Redis
type RedisLimiter struct {
	redis  *rediscommon.Client
	script *redis.Script
	key    string
	limit  int64
	window time.Duration
	logger Logger
}

// NewRedisLimiter allows limit requests per window under key
func NewRedisLimiter(client *rediscommon.Client, key string, limit int64, window time.Duration, logger Logger) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		script: redis.NewScript(rateLimitScript),
		key:    "rate_limit:" + key,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Wait polls the shared window until a slot is free or ctx ends. If Redis
// fails the request is let through.
func (r *RedisLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := r.Check(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		if result.Allowed {
			return nil
		}

		timer := time.NewTimer(result.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Check consumes one slot if available
func (r *RedisLimiter) Check(ctx context.Context) (*RateLimitResult, error) {
	// Run Lua script atomically
	result, err := r.redis.RunScript(ctx, r.script, []string{r.key}, r.limit, r.window.Milliseconds())
	if err != nil {
		r.logger.Error("rate limit check failed", "key", r.key, "error", err)
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	// Parse result array: {allowed, current_count, limit, retry_after_ms}
	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 4 {
		return nil, fmt.Errorf("unexpected script result format")
	}
	values := make([]int64, 4)
	for i, v := range resultArray {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected script result format")
		}
		values[i] = n
	}

	rateLimitResult := &RateLimitResult{
		Allowed:      values[0] == 1,
		CurrentCount: values[1],
		Limit:        values[2],
		RetryAfter:   time.Duration(values[3]) * time.Millisecond,
	}

	if !rateLimitResult.Allowed {
		r.logger.Debug("rate limit reached, waiting",
			"key", r.key,
			"current", rateLimitResult.CurrentCount,
			"limit", r.limit,
			"retry_after_ms", values[3])
	}

	return rateLimitResult, nil
}
