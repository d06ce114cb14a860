package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Vehicle struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlateNumber string             `bson:"plate_number" json:"plateNumber"`
	Odometer    int                `bson:"odometer" json:"odometer"`
	Active      bool               `bson:"active" json:"active"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// VehicleStatus selects vehicles by their active flag.
type VehicleStatus string

const (
	VehicleStatusAll      VehicleStatus = ""
	VehicleStatusActive   VehicleStatus = "active"
	VehicleStatusInactive VehicleStatus = "inactive"
)

func (s VehicleStatus) Matches(v *Vehicle) bool {
	switch s {
	case VehicleStatusActive:
		return v.Active
	case VehicleStatusInactive:
		return !v.Active
	default:
		return true
	}
}

// NormalizePlate trims and upper-cases a human-entered plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), " "))
}
