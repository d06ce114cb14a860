package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fleet-mileage/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The in-memory stores mirror the Mongo repositories, including their
// conditional writes and unique constraints. Records are copied in and out so
// callers never share state with the store.

type MemoryVehicleStore struct {
	mu       sync.RWMutex
	vehicles map[primitive.ObjectID]models.Vehicle
}

func NewMemoryVehicleStore() *MemoryVehicleStore {
	return &MemoryVehicleStore{vehicles: make(map[primitive.ObjectID]models.Vehicle)}
}

func (s *MemoryVehicleStore) Create(_ context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.vehicles {
		if existing.PlateNumber == vehicle.PlateNumber {
			return nil, models.ErrDuplicatePlate
		}
	}

	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	s.vehicles[vehicle.ID] = *vehicle
	stored := *vehicle
	return &stored, nil
}

func (s *MemoryVehicleStore) FindByID(_ context.Context, id string) (*models.Vehicle, error) {
	objectID, err := parseID(id, models.ErrVehicleNotFound)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicle, ok := s.vehicles[objectID]
	if !ok {
		return nil, models.ErrVehicleNotFound
	}
	return &vehicle, nil
}

func (s *MemoryVehicleStore) FindByPlateNumber(_ context.Context, plate string) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, vehicle := range s.vehicles {
		if vehicle.PlateNumber == plate {
			v := vehicle
			return &v, nil
		}
	}
	return nil, models.ErrVehicleNotFound
}

func (s *MemoryVehicleStore) FindAll(_ context.Context, status models.VehicleStatus) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicles := make([]*models.Vehicle, 0, len(s.vehicles))
	for _, vehicle := range s.vehicles {
		v := vehicle
		if status.Matches(&v) {
			vehicles = append(vehicles, &v)
		}
	}
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].PlateNumber < vehicles[j].PlateNumber
	})
	return vehicles, nil
}

func (s *MemoryVehicleStore) SetActive(_ context.Context, id string, active bool) (*models.Vehicle, error) {
	return s.update(id, func(v *models.Vehicle) error {
		v.Active = active
		return nil
	})
}

func (s *MemoryVehicleStore) AdvanceOdometer(_ context.Context, id string, value int) (*models.Vehicle, error) {
	return s.update(id, func(v *models.Vehicle) error {
		if v.Odometer > value {
			return models.ErrOdometerConflict
		}
		v.Odometer = value
		return nil
	})
}

func (s *MemoryVehicleStore) update(id string, apply func(*models.Vehicle) error) (*models.Vehicle, error) {
	objectID, err := parseID(id, models.ErrVehicleNotFound)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vehicle, ok := s.vehicles[objectID]
	if !ok {
		return nil, models.ErrVehicleNotFound
	}
	if err := apply(&vehicle); err != nil {
		return nil, err
	}
	vehicle.UpdatedAt = time.Now()
	s.vehicles[objectID] = vehicle
	return &vehicle, nil
}

type MemoryRouteStore struct {
	mu     sync.RWMutex
	routes map[primitive.ObjectID]models.Route
}

func NewMemoryRouteStore() *MemoryRouteStore {
	return &MemoryRouteStore{routes: make(map[primitive.ObjectID]models.Route)}
}

func (s *MemoryRouteStore) Create(_ context.Context, route *models.Route) (*models.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if route.ID.IsZero() {
		route.ID = primitive.NewObjectID()
	}
	s.routes[route.ID] = *route
	stored := *route
	return &stored, nil
}

func (s *MemoryRouteStore) FindByID(_ context.Context, id string) (*models.Route, error) {
	objectID, err := parseID(id, models.ErrRouteNotFound)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	route, ok := s.routes[objectID]
	if !ok {
		return nil, models.ErrRouteNotFound
	}
	return &route, nil
}

func (s *MemoryRouteStore) FindAll(_ context.Context) ([]*models.Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := make([]*models.Route, 0, len(s.routes))
	for _, route := range s.routes {
		r := route
		routes = append(routes, &r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Origin != routes[j].Origin {
			return routes[i].Origin < routes[j].Origin
		}
		return routes[i].Destination < routes[j].Destination
	})
	return routes, nil
}

func (s *MemoryRouteStore) Delete(_ context.Context, id string) error {
	objectID, err := parseID(id, models.ErrRouteNotFound)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.routes[objectID]; !ok {
		return models.ErrRouteNotFound
	}
	delete(s.routes, objectID)
	return nil
}

type MemoryTripStore struct {
	mu    sync.RWMutex
	trips map[primitive.ObjectID]*models.Trip
}

func NewMemoryTripStore() *MemoryTripStore {
	return &MemoryTripStore{trips: make(map[primitive.ObjectID]*models.Trip)}
}

func (s *MemoryTripStore) Create(_ context.Context, trip *models.Trip) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if trip.ID.IsZero() {
		trip.ID = primitive.NewObjectID()
	}
	if s.conflictsWithOpenDriverTrip(trip) {
		return nil, models.ErrVehicleOccupiedByDriver
	}

	s.trips[trip.ID] = cloneTrip(trip)
	return cloneTrip(trip), nil
}

func (s *MemoryTripStore) FindByID(_ context.Context, id string) (*models.Trip, error) {
	objectID, err := parseID(id, models.ErrTripNotFound)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	trip, ok := s.trips[objectID]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	return cloneTrip(trip), nil
}

func (s *MemoryTripStore) Find(_ context.Context, query models.TripQuery) ([]*models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trips := make([]*models.Trip, 0)
	for _, trip := range s.trips {
		if matchesTripQuery(trip, query) {
			trips = append(trips, cloneTrip(trip))
		}
	}
	sort.SliceStable(trips, func(i, j int) bool {
		if !trips[i].Opening.OpenedAt.Equal(trips[j].Opening.OpenedAt) {
			return trips[i].Opening.OpenedAt.After(trips[j].Opening.OpenedAt)
		}
		return trips[i].ID.Hex() > trips[j].ID.Hex()
	})
	if query.Limit > 0 && int64(len(trips)) > query.Limit {
		trips = trips[:query.Limit]
	}
	return trips, nil
}

func (s *MemoryTripStore) Count(ctx context.Context, query models.TripQuery) (int64, error) {
	query.Limit = 0
	trips, err := s.Find(ctx, query)
	if err != nil {
		return 0, err
	}
	return int64(len(trips)), nil
}

func (s *MemoryTripStore) Update(_ context.Context, trip *models.Trip) (*models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.trips[trip.ID]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	if stored.Version != trip.Version {
		return nil, models.ErrConcurrentUpdate
	}
	if s.conflictsWithOpenDriverTrip(trip) {
		return nil, models.ErrVehicleOccupiedByDriver
	}

	next := cloneTrip(trip)
	next.Version++
	next.UpdatedAt = time.Now()
	s.trips[trip.ID] = next
	return cloneTrip(next), nil
}

func (s *MemoryTripStore) Delete(_ context.Context, id string) error {
	objectID, err := parseID(id, models.ErrTripNotFound)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trips[objectID]; !ok {
		return models.ErrTripNotFound
	}
	delete(s.trips, objectID)
	return nil
}

// conflictsWithOpenDriverTrip mirrors the partial unique index on
// (vehicle_id) for open driver trips.
func (s *MemoryTripStore) conflictsWithOpenDriverTrip(trip *models.Trip) bool {
	if !trip.IsDriverTrip() || !trip.IsOpen() {
		return false
	}
	for id, existing := range s.trips {
		if id != trip.ID && existing.VehicleID == trip.VehicleID && existing.IsDriverTrip() && existing.IsOpen() {
			return true
		}
	}
	return false
}

func matchesTripQuery(trip *models.Trip, query models.TripQuery) bool {
	if query.UserID != nil && trip.UserID != *query.UserID {
		return false
	}
	if query.VehicleID != nil && trip.VehicleID != *query.VehicleID {
		return false
	}
	if query.RouteID != nil && (trip.RouteID == nil || *trip.RouteID != *query.RouteID) {
		return false
	}
	if query.Role != "" && trip.Role != query.Role {
		return false
	}
	if query.OpenOnly && !trip.IsOpen() {
		return false
	}
	if query.OpenedFrom != nil && trip.Opening.OpenedAt.Before(*query.OpenedFrom) {
		return false
	}
	if query.OpenedTo != nil && trip.Opening.OpenedAt.After(*query.OpenedTo) {
		return false
	}
	return true
}

func cloneTrip(trip *models.Trip) *models.Trip {
	c := *trip
	if trip.RouteID != nil {
		id := *trip.RouteID
		c.RouteID = &id
	}
	if trip.PairedTripID != nil {
		id := *trip.PairedTripID
		c.PairedTripID = &id
	}
	if trip.Closing != nil {
		closing := *trip.Closing
		c.Closing = &closing
	}
	return &c
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, user.ID) {
		return nil, models.ErrDuplicateEmail
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	stored := *user
	return &stored, nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	objectID, err := parseID(id, models.ErrUserNotFound)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[objectID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &user, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (s *MemoryUserStore) FindAll(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		u := user
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users, nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return nil, models.ErrUserNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return nil, models.ErrDuplicateEmail
	}

	user.UpdatedAt = time.Now()
	s.users[user.ID] = *user
	stored := *user
	return &stored, nil
}

func (s *MemoryUserStore) emailTaken(email string, except primitive.ObjectID) bool {
	for id, user := range s.users {
		if id != except && strings.EqualFold(user.Email, email) {
			return true
		}
	}
	return false
}
