package repository

import (
	"context"
	"time"

	"fleet-mileage/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const queryTimeout = 10 * time.Second

// VehicleStore persists vehicles. AdvanceOdometer is a conditional write: it
// fails with models.ErrOdometerConflict when the stored odometer is already
// above value.
type VehicleStore interface {
	Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error)
	FindByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindByPlateNumber(ctx context.Context, plate string) (*models.Vehicle, error)
	FindAll(ctx context.Context, status models.VehicleStatus) ([]*models.Vehicle, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Vehicle, error)
	AdvanceOdometer(ctx context.Context, id string, value int) (*models.Vehicle, error)
}

type RouteStore interface {
	Create(ctx context.Context, route *models.Route) (*models.Route, error)
	FindByID(ctx context.Context, id string) (*models.Route, error)
	FindAll(ctx context.Context) ([]*models.Route, error)
	Delete(ctx context.Context, id string) error
}

// TripStore persists trip records. Update replaces the stored record only if
// its version still equals trip.Version and bumps the version; otherwise it
// returns models.ErrConcurrentUpdate.
type TripStore interface {
	Create(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	FindByID(ctx context.Context, id string) (*models.Trip, error)
	Find(ctx context.Context, query models.TripQuery) ([]*models.Trip, error)
	Count(ctx context.Context, query models.TripQuery) (int64, error)
	Update(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	Delete(ctx context.Context, id string) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindAll(ctx context.Context) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
}

// Stores bundles the collections the services work against.
type Stores struct {
	Vehicles VehicleStore
	Routes   RouteStore
	Trips    TripStore
	Users    UserStore
}

func NewMongoStores(db *mongo.Database) *Stores {
	return &Stores{
		Vehicles: NewVehicleRepository(db),
		Routes:   NewRouteRepository(db),
		Trips:    NewTripRepository(db),
		Users:    NewUserRepository(db),
	}
}

func NewMemoryStores() *Stores {
	return &Stores{
		Vehicles: NewMemoryVehicleStore(),
		Routes:   NewMemoryRouteStore(),
		Trips:    NewMemoryTripStore(),
		Users:    NewMemoryUserStore(),
	}
}

// parseID maps malformed ids to the collection's not-found error.
func parseID(id string, notFound error) (primitive.ObjectID, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return objectID, nil
}
