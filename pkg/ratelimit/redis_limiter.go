package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"fleet-mileage/pkg/redis"

	redisClient "github.com/redis/go-redis/v9"
)

// fixedWindowScript counts requests in a window shared by every API
// instance. Returns {allowed, retry_after_ms}.
var fixedWindowScript = redisClient.NewScript(`
	local key = KEYS[1]
	local max_requests = tonumber(ARGV[1])
	local window_size = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local count = tonumber(redis.call('HGET', key, 'count')) or 0
	local window_start = tonumber(redis.call('HGET', key, 'window_start')) or now

	if now - window_start >= window_size then
		count = 0
		window_start = now
	end

	local allowed = count < max_requests
	if allowed then
		count = count + 1
	end

	local retry_after = 0
	if not allowed then
		retry_after = (window_start + window_size) - now
	end

	redis.call('HSET', key, 'count', count, 'window_start', window_start)
	redis.call('PEXPIRE', key, window_size + 1000)

	return {allowed and 1 or 0, retry_after}
`)

// RedisRateLimiter implements RateLimiter on a fixed window kept in Redis.
type RedisRateLimiter struct {
	client *redis.Client
	config *Config
	stats  RateLimiterStats
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, config *Config) *RedisRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	return &RedisRateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

func (r *RedisRateLimiter) Allow(ctx context.Context, clientID string, category string) (bool, time.Duration, error) {
	if !r.config.Enabled {
		return true, 0, nil
	}

	atomic.AddInt64(&r.stats.TotalRequests, 1)

	limit := r.config.GetLimit(category)
	key := fmt.Sprintf("%s%s:%s", r.config.RedisKeyPrefix, clientID, category)

	client := r.client.GetClient()
	if client == nil {
		return false, 0, fmt.Errorf("rate limit check failed: redis client not initialized")
	}

	result, err := fixedWindowScript.Run(ctx, client, []string{key},
		limit.RequestsPerMinute,
		limit.WindowSize.Milliseconds(),
		r.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("unexpected script result format")
	}

	if result[0] != 1 {
		atomic.AddInt64(&r.stats.BlockedRequests, 1)
		return false, time.Duration(result[1]) * time.Millisecond, nil
	}
	return true, 0, nil
}

func (r *RedisRateLimiter) Limit(category string) RateLimit {
	return r.config.GetLimit(category)
}

// GetStats reports counters for this instance only.
func (r *RedisRateLimiter) GetStats() RateLimiterStats {
	return RateLimiterStats{
		TotalRequests:   atomic.LoadInt64(&r.stats.TotalRequests),
		BlockedRequests: atomic.LoadInt64(&r.stats.BlockedRequests),
	}
}
