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

type VehicleRepository struct {
	collection *mongo.Collection
}

func NewVehicleRepository(db *mongo.Database) *VehicleRepository {
	return &VehicleRepository{
		collection: db.Collection("vehicles"),
	}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, vehicle)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrDuplicatePlate
		}
		return nil, fmt.Errorf("insert vehicle: %w", err)
	}

	vehicle.ID = result.InsertedID.(primitive.ObjectID)
	return vehicle, nil
}

func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*models.Vehicle, error) {
	objectID, err := parseID(id, models.ErrVehicleNotFound)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *VehicleRepository) FindByPlateNumber(ctx context.Context, plate string) (*models.Vehicle, error) {
	return r.findOne(ctx, bson.M{"plate_number": plate})
}

func (r *VehicleRepository) findOne(ctx context.Context, filter bson.M) (*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var vehicle models.Vehicle
	err := r.collection.FindOne(ctx, filter).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("find vehicle: %w", err)
	}

	return &vehicle, nil
}

func (r *VehicleRepository) FindAll(ctx context.Context, status models.VehicleStatus) ([]*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{}
	switch status {
	case models.VehicleStatusActive:
		filter["active"] = true
	case models.VehicleStatusInactive:
		filter["active"] = false
	}

	opts := options.Find().SetSort(bson.D{{Key: "plate_number", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	vehicles := make([]*models.Vehicle, 0)
	for cursor.Next(ctx) {
		var vehicle models.Vehicle
		if err := cursor.Decode(&vehicle); err != nil {
			return nil, fmt.Errorf("decode vehicle: %w", err)
		}
		vehicles = append(vehicles, &vehicle)
	}

	return vehicles, cursor.Err()
}

func (r *VehicleRepository) SetActive(ctx context.Context, id string, active bool) (*models.Vehicle, error) {
	objectID, err := parseID(id, models.ErrVehicleNotFound)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{"active": active, "updated_at": time.Now()}}
	return r.findOneAndUpdate(ctx, bson.M{"_id": objectID}, update)
}

// AdvanceOdometer writes value only when the stored odometer does not exceed
// it, so a stale caller can never move the odometer backwards.
func (r *VehicleRepository) AdvanceOdometer(ctx context.Context, id string, value int) (*models.Vehicle, error) {
	objectID, err := parseID(id, models.ErrVehicleNotFound)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"_id": objectID, "odometer": bson.M{"$lte": value}}
	update := bson.M{"$set": bson.M{"odometer": value, "updated_at": time.Now()}}

	vehicle, err := r.findOneAndUpdate(ctx, filter, update)
	if errors.Is(err, models.ErrVehicleNotFound) {
		// the guard failed or the vehicle is gone
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return nil, findErr
		}
		return nil, models.ErrOdometerConflict
	}
	return vehicle, err
}

func (r *VehicleRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var vehicle models.Vehicle
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("update vehicle: %w", err)
	}

	return &vehicle, nil
}
