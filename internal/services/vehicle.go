package services

import (
	"context"
	"errors"
	"log"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/pkg/cache"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleService is the vehicle registry. Odometer changes go through
// setOdometer, which only the trip coordinator calls.
type VehicleService struct {
	vehicles     repository.VehicleStore
	cacheManager cache.CacheManager
	cacheConfig  cache.CacheConfig
}

func NewVehicleService(vehicles repository.VehicleStore) *VehicleService {
	return &VehicleService{
		vehicles:    vehicles,
		cacheConfig: cache.DefaultCacheConfig(),
	}
}

// SetCacheManager enables read-through caching; nil disables it.
func (s *VehicleService) SetCacheManager(cacheManager cache.CacheManager) {
	s.cacheManager = cacheManager
}

func (s *VehicleService) SetCacheConfig(config cache.CacheConfig) {
	s.cacheConfig = config
}

type CreateVehicleRequest struct {
	PlateNumber string `json:"plateNumber" validate:"required,min=1,max=20"`
	Odometer    int    `json:"odometer" validate:"gte=0"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (s *VehicleService) List(ctx context.Context, status models.VehicleStatus) ([]*models.Vehicle, error) {
	switch status {
	case models.VehicleStatusAll, models.VehicleStatusActive, models.VehicleStatusInactive:
	default:
		return nil, models.Invalid("unknown vehicle status %q", status)
	}

	listKey := string(status)
	if listKey == "" {
		listKey = "all"
	}

	if s.cacheManager != nil {
		cached, err := s.cacheManager.GetVehicleList(ctx, listKey)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			log.Printf("Cache error for vehicle list %s: %v", listKey, err)
		}
	}

	vehicles, err := s.vehicles.FindAll(ctx, status)
	if err != nil {
		return nil, err
	}

	if s.cacheManager != nil {
		ttl := s.cacheConfig.GetTTLForDataType("vehicle_list")
		if err := s.cacheManager.SetVehicleList(ctx, listKey, vehicles, ttl); err != nil {
			log.Printf("Failed to cache vehicle list %s: %v", listKey, err)
		}
	}

	return vehicles, nil
}

// Get serves the cached view. Validation paths use current instead.
func (s *VehicleService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	if s.cacheManager != nil {
		cached, err := s.cacheManager.GetVehicle(ctx, id)
		if err == nil && cached != nil {
			return cached, nil
		}
		if err != nil {
			log.Printf("Cache error for vehicle %s: %v", id, err)
		}
	}

	vehicle, err := s.vehicles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cacheManager != nil {
		ttl := s.cacheConfig.GetTTLForDataType("vehicle")
		if err := s.cacheManager.SetVehicle(ctx, vehicle, ttl); err != nil {
			log.Printf("Failed to cache vehicle %s: %v", id, err)
		}
	}

	return vehicle, nil
}

func (s *VehicleService) Create(ctx context.Context, req *CreateVehicleRequest) (*models.Vehicle, error) {
	plate := models.NormalizePlate(req.PlateNumber)
	if plate == "" {
		return nil, models.Invalid("plateNumber is required")
	}
	if req.Odometer < 0 {
		return nil, models.Invalid("odometer must not be negative")
	}

	existing, err := s.vehicles.FindByPlateNumber(ctx, plate)
	if err != nil && !errors.Is(err, models.ErrVehicleNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicatePlate
	}

	now := time.Now()
	vehicle := &models.Vehicle{
		ID:          primitive.NewObjectID(),
		PlateNumber: plate,
		Odometer:    req.Odometer,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.vehicles.Create(ctx, vehicle)
	if err != nil {
		return nil, err
	}

	s.invalidateLists(ctx)
	log.Printf("Vehicle %s registered at %d km", created.PlateNumber, created.Odometer)
	return created, nil
}

func (s *VehicleService) SetActive(ctx context.Context, id string, active bool) (*models.Vehicle, error) {
	vehicle, err := s.vehicles.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return vehicle, nil
}

// current reads the vehicle from the store, bypassing the cache.
func (s *VehicleService) current(ctx context.Context, id string) (*models.Vehicle, error) {
	return s.vehicles.FindByID(ctx, id)
}

// setOdometer advances the stored odometer. The store rejects any value
// below the stored one with models.ErrOdometerConflict.
func (s *VehicleService) setOdometer(ctx context.Context, id string, value int) (*models.Vehicle, error) {
	vehicle, err := s.vehicles.AdvanceOdometer(ctx, id, value)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return vehicle, nil
}

func (s *VehicleService) invalidate(ctx context.Context, id string) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.InvalidateVehicle(ctx, id); err != nil {
		log.Printf("Failed to invalidate vehicle %s: %v", id, err)
	}
	s.invalidateLists(ctx)
}

func (s *VehicleService) invalidateLists(ctx context.Context) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.InvalidateByTag(ctx, cache.TagVehicleLists); err != nil {
		log.Printf("Failed to invalidate vehicle lists: %v", err)
	}
}
