package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/pkg/redis"

	redisClient "github.com/redis/go-redis/v9"
)

type RedisCacheManager struct {
	client *redis.Client
	config CacheConfig
	stats  *cacheStats
}

type cacheStats struct {
	mu            sync.RWMutex
	totalHits     int64
	totalMisses   int64
	evictionCount int64
}

func NewRedisCacheManager(client *redis.Client, config CacheConfig) *RedisCacheManager {
	return &RedisCacheManager{
		client: client,
		config: config,
		stats:  &cacheStats{},
	}
}

func (r *RedisCacheManager) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	found, err := r.read(ctx, r.buildKey("vehicle", vehicleID), &vehicle)
	if err != nil || !found {
		return nil, err
	}
	return &vehicle, nil
}

func (r *RedisCacheManager) SetVehicle(ctx context.Context, vehicle *models.Vehicle, ttl time.Duration) error {
	vehicleID := vehicle.ID.Hex()
	key := r.buildKey("vehicle", vehicleID)
	if err := r.write(ctx, key, vehicle, ttl); err != nil {
		return err
	}

	if err := r.TagKey(ctx, key, vehicleTag(vehicleID)); err != nil {
		log.Printf("Warning: failed to tag cache key %s: %v", key, err)
	}
	return nil
}

// InvalidateVehicle drops the vehicle and every list it appears in.
func (r *RedisCacheManager) InvalidateVehicle(ctx context.Context, vehicleID string) error {
	if err := r.InvalidateByTag(ctx, vehicleTag(vehicleID)); err != nil {
		return err
	}
	return r.deleteKey(ctx, r.buildKey("vehicle", vehicleID))
}

func (r *RedisCacheManager) GetVehicleList(ctx context.Context, key string) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	found, err := r.read(ctx, r.buildKey("vehicle_list", key), &vehicles)
	if err != nil || !found {
		return nil, err
	}
	return vehicles, nil
}

func (r *RedisCacheManager) SetVehicleList(ctx context.Context, key string, vehicles []*models.Vehicle, ttl time.Duration) error {
	cacheKey := r.buildKey("vehicle_list", key)
	if err := r.write(ctx, cacheKey, vehicles, ttl); err != nil {
		return err
	}

	tags := []string{TagVehicleLists}
	for _, vehicle := range vehicles {
		tags = append(tags, vehicleTag(vehicle.ID.Hex()))
	}
	if err := r.TagKey(ctx, cacheKey, tags...); err != nil {
		log.Printf("Warning: failed to tag cache key %s: %v", cacheKey, err)
	}
	return nil
}

func (r *RedisCacheManager) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return r.read(ctx, r.buildKey("generic", key), dest)
}

func (r *RedisCacheManager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.write(ctx, r.buildKey("generic", key), value, ttl)
}

func (r *RedisCacheManager) Delete(ctx context.Context, key string) error {
	return r.deleteKey(ctx, r.buildKey("generic", key))
}

// deleteKey removes a fully built key and its tag associations.
func (r *RedisCacheManager) deleteKey(ctx context.Context, key string) error {
	if err := r.removeKeyTags(ctx, key); err != nil {
		log.Printf("Warning: failed to remove tags for key %s: %v", key, err)
	}
	return r.client.GetClient().Del(ctx, key).Err()
}

func (r *RedisCacheManager) TagKey(ctx context.Context, key string, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}

	ttl := r.config.tagTTL()
	pipe := r.client.GetClient().Pipeline()

	keyTagsKey := r.buildTagKey("key_tags", key)
	members := make([]interface{}, len(tags))
	for i, tag := range tags {
		members[i] = tag
	}
	pipe.SAdd(ctx, keyTagsKey, members...)
	pipe.Expire(ctx, keyTagsKey, ttl)

	for _, tag := range tags {
		tagKeysKey := r.buildTagKey("tag_keys", tag)
		pipe.SAdd(ctx, tagKeysKey, key)
		pipe.Expire(ctx, tagKeysKey, ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCacheManager) InvalidateByTag(ctx context.Context, tag string) error {
	tagKeysKey := r.buildTagKey("tag_keys", tag)

	keys, err := r.client.GetClient().SMembers(ctx, tagKeysKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get keys for tag %s: %w", tag, err)
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := r.client.GetClient().Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
		pipe.Del(ctx, r.buildTagKey("key_tags", key))
	}
	pipe.Del(ctx, tagKeysKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate keys for tag %s: %w", tag, err)
	}

	r.stats.mu.Lock()
	r.stats.evictionCount += int64(len(keys))
	r.stats.mu.Unlock()
	return nil
}

func (r *RedisCacheManager) GetCacheStats() CacheStats {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()

	stats := CacheStats{
		TotalHits:     r.stats.totalHits,
		TotalMisses:   r.stats.totalMisses,
		EvictionCount: r.stats.evictionCount,
	}
	if total := stats.TotalHits + stats.TotalMisses; total > 0 {
		stats.HitRate = float64(stats.TotalHits) / float64(total)
		stats.MissRate = float64(stats.TotalMisses) / float64(total)
	}
	return stats
}

func (r *RedisCacheManager) HealthCheck(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

func (r *RedisCacheManager) read(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.GetClient().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redisClient.Nil) {
			r.recordMiss()
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s from cache: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	r.recordHit()
	return true, nil
}

func (r *RedisCacheManager) write(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.GetClient().Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s to cache: %w", key, err)
	}
	return nil
}

func (r *RedisCacheManager) buildKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.KeyPrefix, keyType, identifier)
}

func (r *RedisCacheManager) buildTagKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.TagPrefix, keyType, identifier)
}

func (r *RedisCacheManager) recordHit() {
	r.stats.mu.Lock()
	r.stats.totalHits++
	r.stats.mu.Unlock()
}

func (r *RedisCacheManager) recordMiss() {
	r.stats.mu.Lock()
	r.stats.totalMisses++
	r.stats.mu.Unlock()
}

func (r *RedisCacheManager) removeKeyTags(ctx context.Context, key string) error {
	keyTagsKey := r.buildTagKey("key_tags", key)

	tags, err := r.client.GetClient().SMembers(ctx, keyTagsKey).Result()
	if err != nil {
		return err
	}

	pipe := r.client.GetClient().Pipeline()
	for _, tag := range tags {
		pipe.SRem(ctx, r.buildTagKey("tag_keys", tag), key)
	}
	pipe.Del(ctx, keyTagsKey)

	_, err = pipe.Exec(ctx)
	return err
}

func vehicleTag(vehicleID string) string {
	return "vehicle:" + vehicleID
}
