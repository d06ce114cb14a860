package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-mileage/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TripRepository struct {
	collection *mongo.Collection
}

func NewTripRepository(db *mongo.Database) *TripRepository {
	return &TripRepository{
		collection: db.Collection("trips"),
	}
}

// Create inserts an open trip. The partial unique index on open driver trips
// turns a lost race for the same vehicle into ErrVehicleOccupiedByDriver.
func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, trip)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrVehicleOccupiedByDriver
		}
		return nil, fmt.Errorf("insert trip: %w", err)
	}

	trip.ID = result.InsertedID.(primitive.ObjectID)
	return trip, nil
}

func (r *TripRepository) FindByID(ctx context.Context, id string) (*models.Trip, error) {
	objectID, err := parseID(id, models.ErrTripNotFound)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var trip models.Trip
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&trip); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("find trip: %w", err)
	}

	return &trip, nil
}

func (r *TripRepository) Find(ctx context.Context, query models.TripQuery) ([]*models.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "opening.opened_at", Value: -1}})
	if query.Limit > 0 {
		opts.SetLimit(query.Limit)
	}

	cursor, err := r.collection.Find(ctx, tripFilter(query), opts)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer cursor.Close(ctx)

	trips := make([]*models.Trip, 0)
	for cursor.Next(ctx) {
		var trip models.Trip
		if err := cursor.Decode(&trip); err != nil {
			return nil, fmt.Errorf("decode trip: %w", err)
		}
		trips = append(trips, &trip)
	}

	return trips, cursor.Err()
}

func (r *TripRepository) Count(ctx context.Context, query models.TripQuery) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, tripFilter(query))
	if err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return count, nil
}

func (r *TripRepository) Update(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	expected := trip.Version
	next := *trip
	next.Version = expected + 1
	next.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": trip.ID, "version": expected}, &next)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrVehicleOccupiedByDriver
		}
		return nil, fmt.Errorf("update trip: %w", err)
	}

	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, trip.ID.Hex()); err != nil {
			return nil, err
		}
		return nil, models.ErrConcurrentUpdate
	}

	return &next, nil
}

func (r *TripRepository) Delete(ctx context.Context, id string) error {
	objectID, err := parseID(id, models.ErrTripNotFound)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrTripNotFound
	}

	return nil
}

func tripFilter(query models.TripQuery) bson.M {
	filter := bson.M{}
	if query.UserID != nil {
		filter["user_id"] = *query.UserID
	}
	if query.VehicleID != nil {
		filter["vehicle_id"] = *query.VehicleID
	}
	if query.RouteID != nil {
		filter["route_id"] = *query.RouteID
	}
	if query.Role != "" {
		filter["role"] = query.Role
	}
	if query.OpenOnly {
		filter["status"] = models.TripStatusOpen
	}

	openedAt := bson.M{}
	if query.OpenedFrom != nil {
		openedAt["$gte"] = *query.OpenedFrom
	}
	if query.OpenedTo != nil {
		openedAt["$lte"] = *query.OpenedTo
	}
	if len(openedAt) > 0 {
		filter["opening.opened_at"] = openedAt
	}

	return filter
}
