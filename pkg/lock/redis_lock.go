package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fleet-mileage/pkg/redis"

	"github.com/google/uuid"
	redisClient "github.com/redis/go-redis/v9"
)

const (
	retryMin = 20 * time.Millisecond
	retryMax = 200 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired holder cannot release a lock someone else has since taken.
var releaseScript = redisClient.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker is a lease-based lock shared by every API instance. ttl bounds
// how long a crashed holder can block a key.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ctx, cancel := withWait(ctx, l.wait)
	defer cancel()

	redisKey := l.prefix + key
	token := uuid.NewString()
	backoff := retryMin

	for {
		ok, err := l.client.GetClient().SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, timeoutError(ctx)
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, timeoutError(ctx)
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > retryMax {
			backoff = retryMax
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// release must run even when the request context is cancelled
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, l.client.GetClient(), []string{redisKey}, token).Err(); err != nil {
				log.Printf("Warning: failed to release lock %s: %v", redisKey, err)
			}
		})
	}
}
