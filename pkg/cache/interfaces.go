package cache

import (
	"context"
	"time"

	"fleet-mileage/internal/models"
)

// CacheManager caches read-side vehicle data. It is never consulted when the
// trip coordinator validates odometers; those reads always hit the store.
type CacheManager interface {
	// Vehicle operations
	GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error)
	SetVehicle(ctx context.Context, vehicle *models.Vehicle, ttl time.Duration) error
	InvalidateVehicle(ctx context.Context, vehicleID string) error

	// Vehicle list operations
	GetVehicleList(ctx context.Context, key string) ([]*models.Vehicle, error)
	SetVehicleList(ctx context.Context, key string, vehicles []*models.Vehicle, ttl time.Duration) error

	// Generic operations; Get reports whether the key was present
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// Tag operations
	TagKey(ctx context.Context, key string, tags ...string) error
	InvalidateByTag(ctx context.Context, tag string) error

	GetCacheStats() CacheStats
	HealthCheck(ctx context.Context) error
}

type CacheStats struct {
	HitRate       float64 `json:"hitRate"`
	MissRate      float64 `json:"missRate"`
	EvictionCount int64   `json:"evictionCount"`
	TotalHits     int64   `json:"totalHits"`
	TotalMisses   int64   `json:"totalMisses"`
}
