package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/pkg/lock"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const compensationTimeout = 5 * time.Second

// TripCoordinator owns the trip lifecycle and is the only writer of vehicle
// odometers. Every mutation holds the vehicle lock and re-reads the vehicle,
// the competing trips and the paired trip before writing.
type TripCoordinator struct {
	trips     repository.TripStore
	routes    repository.RouteStore
	vehicles  *VehicleService
	directory AccountDirectory
	locker    lock.Locker
	now       func() time.Time
}

func NewTripCoordinator(trips repository.TripStore, routes repository.RouteStore, vehicles *VehicleService, directory AccountDirectory, locker lock.Locker) *TripCoordinator {
	return &TripCoordinator{
		trips:     trips,
		routes:    routes,
		vehicles:  vehicles,
		directory: directory,
		locker:    locker,
		now:       time.Now,
	}
}

// OpenTripRequest opens a trip. UserID and Role are only accepted from
// administrators acting on behalf of a user. StartOdometer may be omitted
// for co-pilot trips, which always start at the vehicle's odometer.
type OpenTripRequest struct {
	UserID        string            `json:"userId,omitempty"`
	Role          string            `json:"role,omitempty" validate:"omitempty,oneof=driver copilot"`
	VehicleID     string            `json:"vehicleId" validate:"required"`
	RouteID       string            `json:"routeId,omitempty"`
	StartOdometer *int              `json:"startOdometer,omitempty" validate:"omitempty,gte=0"`
	OpenedAt      *models.Timestamp `json:"openedAt,omitempty"`
}

type CloseTripRequest struct {
	EndOdometer *int              `json:"endOdometer" validate:"required,gte=0"`
	ClosedAt    *models.Timestamp `json:"closedAt,omitempty"`
	LogNote     string            `json:"logNote,omitempty" validate:"max=100"`
}

// EditTripRequest is an administrative patch. Version, when set, must match
// the stored record.
type EditTripRequest struct {
	StartOdometer *int              `json:"startOdometer,omitempty" validate:"omitempty,gte=0"`
	EndOdometer   *int              `json:"endOdometer,omitempty" validate:"omitempty,gte=0"`
	OpenedAt      *models.Timestamp `json:"openedAt,omitempty"`
	ClosedAt      *models.Timestamp `json:"closedAt,omitempty"`
	LogNote       *string           `json:"logNote,omitempty" validate:"omitempty,max=100"`
	Reopen        bool              `json:"reopen,omitempty"`
	Version       *int64            `json:"version,omitempty"`
}

// EligibleVehicle is a vehicle the caller may open (or is running) a trip on.
// Driver fields describe the vehicle's open driver trip, if any.
type EligibleVehicle struct {
	Vehicle      *models.Vehicle `json:"vehicle"`
	DriverTripID string          `json:"driverTripId,omitempty"`
	DriverName   string          `json:"driverName,omitempty"`
	Origin       string          `json:"origin,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	OwnTripID    string          `json:"ownTripId,omitempty"`
	DriverClosed *bool           `json:"driverClosed,omitempty"`
}

// CurrentTrip is the caller's open trip. DriverClosed is set for co-pilot
// trips and gates the close action.
type CurrentTrip struct {
	Trip         *models.Trip `json:"trip"`
	DriverClosed *bool        `json:"driverClosed,omitempty"`
}

func (r *OpenTripRequest) validate(actor models.Actor) (ownerID, role string, err error) {
	if r.VehicleID == "" {
		return "", "", models.Invalid("vehicleId is required")
	}

	if actor.IsAdmin() {
		if r.UserID == "" || r.Role == "" {
			return "", "", models.Invalid("userId and role are required when opening on behalf of a user")
		}
		ownerID, role = r.UserID, r.Role
	} else {
		if r.UserID != "" && r.UserID != actor.UserID {
			return "", "", models.ErrRoleNotAllowed
		}
		ownerID, role = actor.UserID, actor.Role
	}

	if !models.IsTripRole(role) {
		return "", "", models.ErrRoleNotAllowed
	}
	if r.StartOdometer != nil && *r.StartOdometer < 0 {
		return "", "", models.Invalid("startOdometer must not be negative")
	}
	if role == models.RoleDriver {
		if r.RouteID == "" {
			return "", "", models.Invalid("routeId is required for driver trips")
		}
		if r.StartOdometer == nil {
			return "", "", models.Invalid("startOdometer is required for driver trips")
		}
	}
	return ownerID, role, nil
}

func (r *CloseTripRequest) validate() error {
	if r.EndOdometer == nil {
		return models.Invalid("endOdometer is required")
	}
	if *r.EndOdometer < 0 {
		return models.Invalid("endOdometer must not be negative")
	}
	if utf8.RuneCountInString(r.LogNote) > models.MaxLogNoteLength {
		return models.Invalid("logNote must be at most %d characters", models.MaxLogNoteLength)
	}
	return nil
}

func (r *EditTripRequest) validate() error {
	if r.StartOdometer == nil && r.EndOdometer == nil && r.OpenedAt == nil &&
		r.ClosedAt == nil && r.LogNote == nil && !r.Reopen {
		return models.Invalid("nothing to change")
	}
	if r.StartOdometer != nil && *r.StartOdometer < 0 {
		return models.Invalid("startOdometer must not be negative")
	}
	if r.EndOdometer != nil && *r.EndOdometer < 0 {
		return models.Invalid("endOdometer must not be negative")
	}
	if r.LogNote != nil && utf8.RuneCountInString(*r.LogNote) > models.MaxLogNoteLength {
		return models.Invalid("logNote must be at most %d characters", models.MaxLogNoteLength)
	}
	if r.Reopen && (r.EndOdometer != nil || r.ClosedAt != nil || r.LogNote != nil) {
		return models.Invalid("a reopened trip cannot carry closing fields")
	}
	return nil
}

// OpenTrip creates an open trip and advances the vehicle odometer to its
// start reading. If the odometer write fails the trip is removed again.
func (c *TripCoordinator) OpenTrip(ctx context.Context, actor models.Actor, req *OpenTripRequest) (*models.Trip, error) {
	ownerID, role, err := req.validate(actor)
	if err != nil {
		return nil, err
	}

	vehicleID, err := primitive.ObjectIDFromHex(req.VehicleID)
	if err != nil {
		return nil, models.ErrVehicleNotFound
	}
	ownerObjectID, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, models.ErrUserNotFound
	}

	owner, err := c.directory.GetUserProfile(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && owner.Role != role {
		return nil, models.ErrRoleNotAllowed
	}

	// vehicle before user, everywhere
	release, err := c.lock(ctx, "vehicle:"+vehicleID.Hex())
	if err != nil {
		return nil, err
	}
	defer release()

	releaseUser, err := c.lock(ctx, "user:"+ownerObjectID.Hex())
	if err != nil {
		return nil, err
	}
	defer releaseUser()

	vehicle, err := c.vehicles.current(ctx, vehicleID.Hex())
	if err != nil {
		return nil, err
	}
	if !vehicle.Active {
		return nil, models.ErrVehicleInactive
	}

	if !actor.IsAdmin() {
		if _, err := c.openTripOf(ctx, ownerObjectID); err == nil {
			return nil, models.ErrUserHasOpenTrip
		} else if !errors.Is(err, models.ErrTripNotFound) {
			return nil, err
		}
	}

	now := c.now()
	trip := &models.Trip{
		ID:           primitive.NewObjectID(),
		UserID:       ownerObjectID,
		UserName:     owner.Name,
		Role:         role,
		VehicleID:    vehicle.ID,
		VehiclePlate: vehicle.PlateNumber,
		Status:       models.TripStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	driverTrip, err := c.openDriverTrip(ctx, vehicle.ID)
	if err != nil && !errors.Is(err, models.ErrTripNotFound) {
		return nil, err
	}

	var reading int
	switch role {
	case models.RoleDriver:
		if driverTrip != nil {
			return nil, models.ErrVehicleOccupiedByDriver
		}
		route, err := c.routes.FindByID(ctx, req.RouteID)
		if err != nil {
			return nil, err
		}
		trip.RouteID = &route.ID
		trip.Origin = route.Origin
		trip.Destination = route.Destination
		reading = *req.StartOdometer

	case models.RoleCopilot:
		if driverTrip == nil {
			return nil, models.ErrNoActiveDriverTrip
		}
		trip.RouteID = driverTrip.RouteID
		trip.Origin = driverTrip.Origin
		trip.Destination = driverTrip.Destination
		trip.PairedTripID = &driverTrip.ID
		reading = vehicle.Odometer
		if req.StartOdometer != nil {
			reading = *req.StartOdometer
		}
	}

	if reading < vehicle.Odometer {
		return nil, models.WithFloor(models.ErrOdometerBelowVehicle, vehicle.Odometer)
	}
	if role == models.RoleCopilot {
		// co-pilots ride along; their reading is the vehicle's
		reading = vehicle.Odometer
	}

	openedAt := now
	if req.OpenedAt != nil {
		openedAt = req.OpenedAt.UTC()
	}
	trip.Opening = models.TripOpening{StartOdometer: reading, OpenedAt: openedAt}

	created, err := c.trips.Create(ctx, trip)
	if err != nil {
		return nil, err
	}

	if _, err := c.vehicles.setOdometer(ctx, vehicle.ID.Hex(), reading); err != nil {
		c.compensate(ctx, "remove trip "+created.ID.Hex(), func(ctx context.Context) error {
			return c.trips.Delete(ctx, created.ID.Hex())
		})
		return nil, err
	}

	log.Printf("Trip %s opened: %s %s on %s at %d km", created.ID.Hex(), role, ownerID, vehicle.PlateNumber, reading)
	return created, nil
}

// CloseTrip records the closing and advances the vehicle odometer to the
// end reading. If the odometer write fails the closing is cleared again.
func (c *TripCoordinator) CloseTrip(ctx context.Context, actor models.Actor, tripID string, req *CloseTripRequest) (*models.Trip, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	trip, err := c.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && trip.UserID.Hex() != actor.UserID {
		return nil, models.ErrTripNotOwned
	}

	release, err := c.lock(ctx, "vehicle:"+trip.VehicleID.Hex())
	if err != nil {
		return nil, err
	}
	defer release()

	// state may have moved while waiting for the lock
	trip, err = c.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsOpen() {
		return nil, models.ErrTripAlreadyClosed
	}

	end := *req.EndOdometer
	if end < trip.Opening.StartOdometer {
		return nil, models.WithFloor(models.ErrOdometerBelowOpening, trip.Opening.StartOdometer)
	}

	if !trip.IsDriverTrip() {
		closed, err := c.driverClosed(ctx, trip)
		if err != nil {
			return nil, err
		}
		if !closed {
			return nil, models.ErrDriverNotYetClosed
		}
	}

	vehicle, err := c.vehicles.current(ctx, trip.VehicleID.Hex())
	if err != nil {
		return nil, err
	}
	if end < vehicle.Odometer {
		return nil, models.WithFloor(models.ErrOdometerBelowVehicle, vehicle.Odometer)
	}

	closedAt := c.now()
	if req.ClosedAt != nil {
		closedAt = req.ClosedAt.UTC()
	}
	if closedAt.Before(trip.Opening.OpenedAt) {
		return nil, models.Invalid("closedAt must not be before openedAt")
	}

	trip.Close(models.TripClosing{
		EndOdometer: end,
		ClosedAt:    closedAt,
		LogNote:     req.LogNote,
	})
	trip.UpdatedAt = c.now()

	updated, err := c.trips.Update(ctx, trip)
	if err != nil {
		return nil, err
	}

	if _, err := c.vehicles.setOdometer(ctx, vehicle.ID.Hex(), end); err != nil {
		c.compensate(ctx, "reopen trip "+updated.ID.Hex(), func(ctx context.Context) error {
			reverted := *updated
			reverted.Reopen()
			_, err := c.trips.Update(ctx, &reverted)
			return err
		})
		return nil, err
	}

	log.Printf("Trip %s closed on %s at %d km", updated.ID.Hex(), vehicle.PlateNumber, end)
	return updated, nil
}

// EditTrip applies an administrative correction. It never moves the vehicle
// odometer: a new start must be at least the current odometer and a new end
// must equal it.
func (c *TripCoordinator) EditTrip(ctx context.Context, tripID string, req *EditTripRequest) (*models.Trip, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	trip, err := c.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	release, err := c.lock(ctx, "vehicle:"+trip.VehicleID.Hex())
	if err != nil {
		return nil, err
	}
	defer release()

	trip, err = c.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if req.Version != nil && *req.Version != trip.Version {
		return nil, models.ErrConcurrentUpdate
	}

	vehicle, err := c.vehicles.current(ctx, trip.VehicleID.Hex())
	if err != nil {
		return nil, err
	}

	if req.Reopen {
		if err := c.reopen(ctx, trip); err != nil {
			return nil, err
		}
	}

	if req.StartOdometer != nil {
		if *req.StartOdometer < vehicle.Odometer {
			return nil, models.WithFloor(models.ErrOdometerBelowVehicle, vehicle.Odometer)
		}
		trip.Opening.StartOdometer = *req.StartOdometer
	}
	if req.OpenedAt != nil {
		trip.Opening.OpenedAt = req.OpenedAt.UTC()
	}

	if req.EndOdometer != nil || req.ClosedAt != nil || req.LogNote != nil {
		if trip.IsOpen() {
			return nil, models.ErrTripNotClosed
		}
		closing := *trip.Closing
		if req.EndOdometer != nil {
			if *req.EndOdometer != vehicle.Odometer {
				return nil, models.WithFloor(models.ErrOdometerMismatch, vehicle.Odometer)
			}
			closing.EndOdometer = *req.EndOdometer
		}
		if req.ClosedAt != nil {
			closing.ClosedAt = req.ClosedAt.UTC()
		}
		if req.LogNote != nil {
			closing.LogNote = *req.LogNote
		}
		trip.Close(closing)
	}

	if trip.Closing != nil {
		if trip.Closing.EndOdometer < trip.Opening.StartOdometer {
			return nil, models.WithFloor(models.ErrOdometerBelowOpening, trip.Opening.StartOdometer)
		}
		if trip.Closing.ClosedAt.Before(trip.Opening.OpenedAt) {
			return nil, models.Invalid("closedAt must not be before openedAt")
		}
	}

	trip.UpdatedAt = c.now()
	updated, err := c.trips.Update(ctx, trip)
	if err != nil {
		return nil, err
	}

	log.Printf("Trip %s edited (version %d)", updated.ID.Hex(), updated.Version)
	return updated, nil
}

// reopen clears the closing of trip, refusing if that would leave two open
// driver trips on the vehicle or two open trips for the owner. A co-pilot
// trip can only be reopened while its driver trip is open.
func (c *TripCoordinator) reopen(ctx context.Context, trip *models.Trip) error {
	if trip.IsOpen() {
		return models.ErrTripNotClosed
	}

	if trip.IsDriverTrip() {
		other, err := c.openDriverTrip(ctx, trip.VehicleID)
		if err != nil && !errors.Is(err, models.ErrTripNotFound) {
			return err
		}
		if other != nil {
			return models.ErrVehicleOccupiedByDriver
		}
	} else {
		closed, err := c.driverClosed(ctx, trip)
		if err != nil {
			return err
		}
		if closed {
			return models.ErrNoActiveDriverTrip
		}
	}

	other, err := c.openTripOf(ctx, trip.UserID)
	if err != nil && !errors.Is(err, models.ErrTripNotFound) {
		return err
	}
	if other != nil {
		return models.ErrUserHasOpenTrip
	}

	trip.Reopen()
	return nil
}

// DeleteTrip removes a trip in any state. The vehicle odometer is left as is.
func (c *TripCoordinator) DeleteTrip(ctx context.Context, tripID string) error {
	trip, err := c.trips.FindByID(ctx, tripID)
	if err != nil {
		return err
	}

	release, err := c.lock(ctx, "vehicle:"+trip.VehicleID.Hex())
	if err != nil {
		return err
	}
	defer release()

	if err := c.trips.Delete(ctx, tripID); err != nil {
		return err
	}

	log.Printf("Trip %s deleted", tripID)
	return nil
}

func (c *TripCoordinator) GetTrip(ctx context.Context, actor models.Actor, tripID string) (*models.Trip, error) {
	trip, err := c.trips.FindByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && trip.UserID.Hex() != actor.UserID {
		return nil, models.ErrTripNotOwned
	}
	return trip, nil
}

// ListMine returns the caller's trips, newest first.
func (c *TripCoordinator) ListMine(ctx context.Context, actor models.Actor, limit int64) ([]*models.Trip, error) {
	userID, err := primitive.ObjectIDFromHex(actor.UserID)
	if err != nil {
		return nil, models.ErrUserNotFound
	}
	return c.trips.Find(ctx, models.TripQuery{UserID: &userID, Limit: limit})
}

// CurrentTrip returns the caller's open trip, or nil when there is none.
func (c *TripCoordinator) CurrentTrip(ctx context.Context, actor models.Actor) (*CurrentTrip, error) {
	userID, err := primitive.ObjectIDFromHex(actor.UserID)
	if err != nil {
		return nil, models.ErrUserNotFound
	}

	trip, err := c.openTripOf(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrTripNotFound) {
			return nil, nil
		}
		return nil, err
	}

	current := &CurrentTrip{Trip: trip}
	if !trip.IsDriverTrip() {
		closed, err := c.driverClosed(ctx, trip)
		if err != nil {
			return nil, err
		}
		current.DriverClosed = &closed
	}
	return current, nil
}

// EligibleVehicles lists the vehicles the caller can act on:
//   - driver: active vehicles without an open driver trip
//   - co-pilot: active vehicles with an open driver trip, or only the vehicle
//     of the caller's own open trip
//   - admin: every active vehicle, annotated with its open driver trip
func (c *TripCoordinator) EligibleVehicles(ctx context.Context, actor models.Actor) ([]*EligibleVehicle, error) {
	if actor.Role == models.RoleCopilot {
		userID, err := primitive.ObjectIDFromHex(actor.UserID)
		if err != nil {
			return nil, models.ErrUserNotFound
		}
		own, err := c.openTripOf(ctx, userID)
		if err != nil && !errors.Is(err, models.ErrTripNotFound) {
			return nil, err
		}
		if own != nil {
			return c.ownTripVehicle(ctx, own)
		}
	} else if actor.Role != models.RoleDriver && !actor.IsAdmin() {
		return nil, models.ErrRoleNotAllowed
	}

	vehicles, err := c.vehicles.List(ctx, models.VehicleStatusActive)
	if err != nil {
		return nil, err
	}

	driverTrips, err := c.trips.Find(ctx, models.TripQuery{Role: models.RoleDriver, OpenOnly: true})
	if err != nil {
		return nil, err
	}
	byVehicle := make(map[primitive.ObjectID]*models.Trip, len(driverTrips))
	for _, trip := range driverTrips {
		byVehicle[trip.VehicleID] = trip
	}

	eligible := make([]*EligibleVehicle, 0, len(vehicles))
	for _, vehicle := range vehicles {
		driverTrip := byVehicle[vehicle.ID]
		switch {
		case actor.Role == models.RoleDriver && driverTrip != nil:
			continue
		case actor.Role == models.RoleCopilot && driverTrip == nil:
			continue
		}

		entry := &EligibleVehicle{Vehicle: vehicle}
		if driverTrip != nil {
			entry.DriverTripID = driverTrip.ID.Hex()
			entry.DriverName = driverTrip.UserName
			entry.Origin = driverTrip.Origin
			entry.Destination = driverTrip.Destination
		}
		eligible = append(eligible, entry)
	}
	return eligible, nil
}

func (c *TripCoordinator) ownTripVehicle(ctx context.Context, own *models.Trip) ([]*EligibleVehicle, error) {
	vehicle, err := c.vehicles.current(ctx, own.VehicleID.Hex())
	if err != nil {
		return nil, err
	}

	closed, err := c.driverClosed(ctx, own)
	if err != nil {
		return nil, err
	}

	entry := &EligibleVehicle{
		Vehicle:      vehicle,
		Origin:       own.Origin,
		Destination:  own.Destination,
		OwnTripID:    own.ID.Hex(),
		DriverClosed: &closed,
	}
	if own.PairedTripID != nil {
		entry.DriverTripID = own.PairedTripID.Hex()
		if paired, err := c.trips.FindByID(ctx, own.PairedTripID.Hex()); err == nil {
			entry.DriverName = paired.UserName
		}
	}
	return []*EligibleVehicle{entry}, nil
}

// driverClosed re-reads the driver trip paired with a co-pilot trip. A
// deleted driver trip counts as closed. Trips recorded without a pairing
// fall back to any driver trip open on the vehicle since before the
// co-pilot trip opened.
func (c *TripCoordinator) driverClosed(ctx context.Context, copilotTrip *models.Trip) (bool, error) {
	if copilotTrip.PairedTripID != nil {
		paired, err := c.trips.FindByID(ctx, copilotTrip.PairedTripID.Hex())
		if err != nil {
			if errors.Is(err, models.ErrTripNotFound) {
				return true, nil
			}
			return false, err
		}
		return !paired.IsOpen(), nil
	}

	openedTo := copilotTrip.Opening.OpenedAt
	open, err := c.trips.Find(ctx, models.TripQuery{
		VehicleID: &copilotTrip.VehicleID,
		Role:      models.RoleDriver,
		OpenOnly:  true,
		OpenedTo:  &openedTo,
		Limit:     1,
	})
	if err != nil {
		return false, err
	}
	return len(open) == 0, nil
}

func (c *TripCoordinator) openDriverTrip(ctx context.Context, vehicleID primitive.ObjectID) (*models.Trip, error) {
	return c.findOne(ctx, models.TripQuery{VehicleID: &vehicleID, Role: models.RoleDriver, OpenOnly: true})
}

func (c *TripCoordinator) openTripOf(ctx context.Context, userID primitive.ObjectID) (*models.Trip, error) {
	return c.findOne(ctx, models.TripQuery{UserID: &userID, OpenOnly: true})
}

// findOne returns the newest trip matching query or models.ErrTripNotFound.
func (c *TripCoordinator) findOne(ctx context.Context, query models.TripQuery) (*models.Trip, error) {
	query.Limit = 1
	trips, err := c.trips.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, models.ErrTripNotFound
	}
	return trips[0], nil
}

func (c *TripCoordinator) lock(ctx context.Context, key string) (func(), error) {
	release, err := c.locker.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return nil, models.ErrVehicleBusy
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return release, nil
}

// compensate undoes a half-applied write. It runs detached from the request
// so a cancelled caller still rolls back.
func (c *TripCoordinator) compensate(ctx context.Context, what string, undo func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := undo(ctx); err != nil {
		log.Printf("ERROR: compensation failed (%s): %v", what, err)
		return
	}
	log.Printf("Compensated: %s", what)
}
