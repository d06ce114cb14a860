package cache

import (
	"fleet-mileage/pkg/redis"
)

// NewCacheManager returns a Redis-backed manager, or nil when Redis is not
// configured; services treat a nil manager as "no caching".
func NewCacheManager(redisClient *redis.Client, config CacheConfig) CacheManager {
	if redisClient == nil {
		return nil
	}
	return NewRedisCacheManager(redisClient, config)
}
