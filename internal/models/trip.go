package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxLogNoteLength = 100

const (
	TripStatusOpen   = "open"
	TripStatusClosed = "closed"
)

type Trip struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID  `bson:"user_id" json:"userId"`
	UserName     string              `bson:"user_name" json:"userName"`
	Role         string              `bson:"role" json:"role"`
	VehicleID    primitive.ObjectID  `bson:"vehicle_id" json:"vehicleId"`
	VehiclePlate string              `bson:"vehicle_plate" json:"vehiclePlate"`
	RouteID      *primitive.ObjectID `bson:"route_id,omitempty" json:"routeId,omitempty"`
	Origin       string              `bson:"origin" json:"origin"`
	Destination  string              `bson:"destination" json:"destination"`
	PairedTripID *primitive.ObjectID `bson:"paired_trip_id,omitempty" json:"pairedTripId,omitempty"`
	Opening      TripOpening         `bson:"opening" json:"opening"`
	Closing      *TripClosing        `bson:"closing,omitempty" json:"closing,omitempty"`
	Status       string              `bson:"status" json:"status"`
	Version      int64               `bson:"version" json:"version"`
	CreatedAt    time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updatedAt"`
}

type TripOpening struct {
	StartOdometer int       `bson:"start_odometer" json:"startOdometer"`
	OpenedAt      time.Time `bson:"opened_at" json:"openedAt"`
}

type TripClosing struct {
	EndOdometer int       `bson:"end_odometer" json:"endOdometer"`
	ClosedAt    time.Time `bson:"closed_at" json:"closedAt"`
	LogNote     string    `bson:"log_note,omitempty" json:"logNote,omitempty"`
}

func (t *Trip) IsOpen() bool {
	return t.Closing == nil
}

// Close records the closing; Status mirrors Closing so storage can index open trips.
func (t *Trip) Close(closing TripClosing) {
	t.Closing = &closing
	t.Status = TripStatusClosed
}

func (t *Trip) Reopen() {
	t.Closing = nil
	t.Status = TripStatusOpen
}

func (t *Trip) IsDriverTrip() bool {
	return t.Role == RoleDriver
}

// Distance is end minus start; ok is false while the trip is open.
func (t *Trip) Distance() (int, bool) {
	if t.Closing == nil {
		return 0, false
	}
	return t.Closing.EndOdometer - t.Opening.StartOdometer, true
}

// TripQuery is the storage-level filter over the trips collection.
// Zero values are ignored.
type TripQuery struct {
	UserID     *primitive.ObjectID
	VehicleID  *primitive.ObjectID
	RouteID    *primitive.ObjectID
	Role       string
	OpenOnly   bool
	OpenedFrom *time.Time
	OpenedTo   *time.Time
	Limit      int64
}

// TripFilter is the reporting filter exposed to administrators.
type TripFilter struct {
	From           *time.Time
	To             *time.Time
	UserID         string
	VehicleID      string
	Role           string
	RouteSubstring string
	OpenOnly       bool
}
