package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindPrecondition ErrorKind = "precondition"
	KindNotFound     ErrorKind = "not_found"
	KindConcurrency  ErrorKind = "concurrency"
	KindAuth         ErrorKind = "auth"
)

// DomainError is returned by services for every expected failure. Two
// DomainErrors match under errors.Is when their codes are equal, so the
// sentinels below can be compared against errors that carry a floor.
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Floor   *int      `json:"floor,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Floor != nil {
		return fmt.Sprintf("%s (%d)", e.Message, *e.Floor)
	}
	return e.Message
}

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidRequest = newError(KindValidation, "INVALID_REQUEST", "invalid request")

	ErrVehicleNotFound = newError(KindNotFound, "VEHICLE_NOT_FOUND", "vehicle not found")
	ErrRouteNotFound   = newError(KindNotFound, "ROUTE_NOT_FOUND", "route not found")
	ErrTripNotFound    = newError(KindNotFound, "TRIP_NOT_FOUND", "trip not found")
	ErrUserNotFound    = newError(KindNotFound, "USER_NOT_FOUND", "user not found")

	ErrVehicleInactive         = newError(KindPrecondition, "VEHICLE_INACTIVE", "vehicle is inactive")
	ErrVehicleOccupiedByDriver = newError(KindPrecondition, "VEHICLE_OCCUPIED_BY_DRIVER", "vehicle already has an open driver trip")
	ErrNoActiveDriverTrip      = newError(KindPrecondition, "NO_ACTIVE_DRIVER_TRIP", "vehicle has no open driver trip")
	ErrOdometerBelowVehicle    = newError(KindPrecondition, "ODOMETER_BELOW_VEHICLE", "odometer reading must be at least the vehicle odometer")
	ErrOdometerBelowOpening    = newError(KindPrecondition, "ODOMETER_BELOW_OPENING", "end odometer must be at least the opening odometer")
	ErrOdometerMismatch        = newError(KindPrecondition, "ODOMETER_MISMATCH", "end odometer must equal the vehicle odometer")
	ErrTripAlreadyClosed       = newError(KindPrecondition, "TRIP_ALREADY_CLOSED", "trip is already closed")
	ErrTripNotClosed           = newError(KindPrecondition, "TRIP_NOT_CLOSED", "trip is still open")
	ErrDriverNotYetClosed      = newError(KindPrecondition, "DRIVER_NOT_YET_CLOSED", "the driver has not closed the paired trip yet")
	ErrUserHasOpenTrip         = newError(KindPrecondition, "USER_HAS_OPEN_TRIP", "user already has an open trip")
	ErrDuplicatePlate          = newError(KindPrecondition, "DUPLICATE_PLATE", "a vehicle with this plate already exists")
	ErrDuplicateEmail          = newError(KindPrecondition, "DUPLICATE_EMAIL", "a user with this email already exists")
	ErrRouteInUse              = newError(KindPrecondition, "ROUTE_IN_USE", "route is referenced by trips")

	ErrTripNotOwned    = newError(KindAuth, "TRIP_NOT_OWNED", "trip belongs to another user")
	ErrRoleNotAllowed  = newError(KindAuth, "ROLE_NOT_ALLOWED", "role cannot perform this operation")
	ErrInvalidLogin    = newError(KindAuth, "INVALID_CREDENTIALS", "invalid credentials")
	ErrAccountInactive = newError(KindAuth, "ACCOUNT_INACTIVE", "account is not active")

	ErrOdometerConflict = newError(KindConcurrency, "ODOMETER_CONFLICT", "vehicle odometer changed concurrently")
	ErrConcurrentUpdate = newError(KindConcurrency, "CONCURRENT_UPDATE", "record changed concurrently; reload and retry")
	ErrVehicleBusy      = newError(KindConcurrency, "VEHICLE_BUSY", "another update for this vehicle is in progress")
)

// WithFloor copies a sentinel and attaches the numeric floor the caller must respect.
func WithFloor(sentinel *DomainError, floor int) error {
	e := *sentinel
	e.Floor = &floor
	return &e
}

// Invalid builds a validation error with a specific message.
func Invalid(format string, args ...interface{}) error {
	e := *ErrInvalidRequest
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

// AsDomainError unwraps err into a DomainError when it is one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
