package services

import (
	"context"
	"testing"

	"fleet-mileage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRouteService_CreateAndList(t *testing.T) {
	f := newFixture(t)

	_, err := f.routes.Create(f.ctx, &CreateRouteRequest{Origin: "  ", Destination: "B"})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	f.route(t, "Zeta", "Depot")
	f.route(t, " Alpha ", "Depot")

	routes, err := f.routes.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "Alpha", routes[0].Origin)
	assert.Equal(t, "Alpha → Depot", routes[0].Label())
}

func TestRouteService_DeleteRefusedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	driver := f.actor(t, "Dana", models.RoleDriver)
	v1 := f.vehicle(t, "V1", 0)
	used := f.route(t, "A", "B")
	unused := f.route(t, "C", "D")

	f.openDriver(t, driver, v1, used, 0)

	assert.ErrorIs(t, f.routes.Delete(f.ctx, used.ID.Hex()), models.ErrRouteInUse)
	assert.NoError(t, f.routes.Delete(f.ctx, unused.ID.Hex()))
	assert.ErrorIs(t, f.routes.Delete(f.ctx, unused.ID.Hex()), models.ErrRouteNotFound)
}

func TestRouteService_ListUsesCache(t *testing.T) {
	f := newFixture(t)
	mockCache := new(MockCacheManager)
	f.routes.SetCacheManager(mockCache)

	mockCache.On("Get", mock.Anything, routeListCacheKey, mock.Anything).Return(false, nil).Once()
	mockCache.On("Set", mock.Anything, routeListCacheKey, mock.Anything, f.routes.cacheConfig.RouteListTTL).Return(nil).Once()

	routes, err := f.routes.List(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)

	mockCache.On("Delete", mock.Anything, routeListCacheKey).Return(nil).Once()
	_, err = f.routes.Create(context.Background(), &CreateRouteRequest{Origin: "A", Destination: "B"})
	require.NoError(t, err)

	mockCache.AssertExpectations(t)
}
