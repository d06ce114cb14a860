package services

import (
	"context"
	"log"
	"strings"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/pkg/cache"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const routeListCacheKey = "routes"

type RouteService struct {
	routes       repository.RouteStore
	trips        repository.TripStore
	cacheManager cache.CacheManager
	cacheConfig  cache.CacheConfig
}

func NewRouteService(routes repository.RouteStore, trips repository.TripStore) *RouteService {
	return &RouteService{
		routes:      routes,
		trips:       trips,
		cacheConfig: cache.DefaultCacheConfig(),
	}
}

func (s *RouteService) SetCacheManager(cacheManager cache.CacheManager) {
	s.cacheManager = cacheManager
}

type CreateRouteRequest struct {
	Origin      string `json:"origin" validate:"required,min=1,max=100"`
	Destination string `json:"destination" validate:"required,min=1,max=100"`
}

func (s *RouteService) List(ctx context.Context) ([]*models.Route, error) {
	if s.cacheManager != nil {
		var cached []*models.Route
		found, err := s.cacheManager.Get(ctx, routeListCacheKey, &cached)
		if err != nil {
			log.Printf("Cache error for route list: %v", err)
		}
		if found {
			return cached, nil
		}
	}

	routes, err := s.routes.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if s.cacheManager != nil {
		ttl := s.cacheConfig.GetTTLForDataType("route_list")
		if err := s.cacheManager.Set(ctx, routeListCacheKey, routes, ttl); err != nil {
			log.Printf("Failed to cache route list: %v", err)
		}
	}

	return routes, nil
}

func (s *RouteService) Get(ctx context.Context, id string) (*models.Route, error) {
	return s.routes.FindByID(ctx, id)
}

func (s *RouteService) Create(ctx context.Context, req *CreateRouteRequest) (*models.Route, error) {
	origin := strings.TrimSpace(req.Origin)
	destination := strings.TrimSpace(req.Destination)
	if origin == "" || destination == "" {
		return nil, models.Invalid("origin and destination are required")
	}

	route := &models.Route{
		ID:          primitive.NewObjectID(),
		Origin:      origin,
		Destination: destination,
		CreatedAt:   time.Now(),
	}

	created, err := s.routes.Create(ctx, route)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return created, nil
}

// Delete removes a route that no trip references.
func (s *RouteService) Delete(ctx context.Context, id string) error {
	route, err := s.routes.FindByID(ctx, id)
	if err != nil {
		return err
	}

	used, err := s.trips.Count(ctx, models.TripQuery{RouteID: &route.ID})
	if err != nil {
		return err
	}
	if used > 0 {
		return models.ErrRouteInUse
	}

	if err := s.routes.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

func (s *RouteService) invalidate(ctx context.Context) {
	if s.cacheManager == nil {
		return
	}
	if err := s.cacheManager.Delete(ctx, routeListCacheKey); err != nil {
		log.Printf("Failed to invalidate route list: %v", err)
	}
}
