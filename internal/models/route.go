package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Route struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Origin      string             `bson:"origin" json:"origin"`
	Destination string             `bson:"destination" json:"destination"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

func (r *Route) Label() string {
	return r.Origin + " → " + r.Destination
}
