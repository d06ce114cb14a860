package cache

import (
	"context"
	"testing"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	redisClient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setupCache(t *testing.T) (*RedisCacheManager, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redisClient.NewClient(&redisClient.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	config := DefaultCacheConfig()
	config.KeyPrefix = "test:"
	config.TagPrefix = "test_tag:"

	return NewRedisCacheManager(redis.Wrap(client), config), mr
}

func testVehicle(plate string, odometer int) *models.Vehicle {
	return &models.Vehicle{
		ID:          primitive.NewObjectID(),
		PlateNumber: plate,
		Odometer:    odometer,
		Active:      true,
	}
}

func TestRedisCacheManager_VehicleOperations(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupCache(t)
	vehicle := testVehicle("ABC1234", 1200)

	t.Run("Miss", func(t *testing.T) {
		cached, err := manager.GetVehicle(ctx, vehicle.ID.Hex())
		assert.NoError(t, err)
		assert.Nil(t, cached)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, manager.SetVehicle(ctx, vehicle, 30*time.Second))

		cached, err := manager.GetVehicle(ctx, vehicle.ID.Hex())
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, vehicle.PlateNumber, cached.PlateNumber)
		assert.Equal(t, 1200, cached.Odometer)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, manager.InvalidateVehicle(ctx, vehicle.ID.Hex()))

		cached, err := manager.GetVehicle(ctx, vehicle.ID.Hex())
		assert.NoError(t, err)
		assert.Nil(t, cached)
	})

	stats := manager.GetCacheStats()
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(2), stats.TotalMisses)
}

func TestRedisCacheManager_InvalidatingVehicleDropsLists(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupCache(t)

	first := testVehicle("AAA1111", 10)
	second := testVehicle("BBB2222", 20)
	require.NoError(t, manager.SetVehicleList(ctx, "active", []*models.Vehicle{first, second}, time.Minute))
	require.NoError(t, manager.SetVehicleList(ctx, "inactive", []*models.Vehicle{}, time.Minute))

	cached, err := manager.GetVehicleList(ctx, "active")
	require.NoError(t, err)
	require.Len(t, cached, 2)

	require.NoError(t, manager.InvalidateVehicle(ctx, second.ID.Hex()))

	cached, err = manager.GetVehicleList(ctx, "active")
	assert.NoError(t, err)
	assert.Nil(t, cached)

	// lists without the vehicle survive a per-vehicle invalidation
	empty, err := manager.GetVehicleList(ctx, "inactive")
	assert.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)

	require.NoError(t, manager.InvalidateByTag(ctx, TagVehicleLists))
	empty, err = manager.GetVehicleList(ctx, "inactive")
	assert.NoError(t, err)
	assert.Nil(t, empty)
}

func TestRedisCacheManager_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	manager, mr := setupCache(t)
	vehicle := testVehicle("TTL0001", 5)

	require.NoError(t, manager.SetVehicle(ctx, vehicle, time.Second))
	mr.FastForward(2 * time.Second)

	cached, err := manager.GetVehicle(ctx, vehicle.ID.Hex())
	assert.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisCacheManager_GenericOperations(t *testing.T) {
	ctx := context.Background()
	manager, _ := setupCache(t)

	type summary struct {
		Trips int `json:"trips"`
	}

	var out summary
	found, err := manager.Get(ctx, "summary", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, manager.Set(ctx, "summary", summary{Trips: 7}, time.Minute))

	found, err = manager.Get(ctx, "summary", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, out.Trips)

	require.NoError(t, manager.Delete(ctx, "summary"))
	found, err = manager.Get(ctx, "summary", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheManager_HealthCheck(t *testing.T) {
	manager, mr := setupCache(t)

	assert.NoError(t, manager.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, manager.HealthCheck(context.Background()))
}

func TestNewCacheManager_NilClient(t *testing.T) {
	assert.Nil(t, NewCacheManager(nil, DefaultCacheConfig()))
}
