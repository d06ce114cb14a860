package repository

import (
	"context"
	"errors"
	"fmt"

	"fleet-mileage/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RouteRepository struct {
	collection *mongo.Collection
}

func NewRouteRepository(db *mongo.Database) *RouteRepository {
	return &RouteRepository{
		collection: db.Collection("routes"),
	}
}

func (r *RouteRepository) Create(ctx context.Context, route *models.Route) (*models.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("insert route: %w", err)
	}

	route.ID = result.InsertedID.(primitive.ObjectID)
	return route, nil
}

func (r *RouteRepository) FindByID(ctx context.Context, id string) (*models.Route, error) {
	objectID, err := parseID(id, models.ErrRouteNotFound)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var route models.Route
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&route); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrRouteNotFound
		}
		return nil, fmt.Errorf("find route: %w", err)
	}

	return &route, nil
}

func (r *RouteRepository) FindAll(ctx context.Context) ([]*models.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "origin", Value: 1}, {Key: "destination", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer cursor.Close(ctx)

	routes := make([]*models.Route, 0)
	if err := cursor.All(ctx, &routes); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}

	return routes, nil
}

func (r *RouteRepository) Delete(ctx context.Context, id string) error {
	objectID, err := parseID(id, models.ErrRouteNotFound)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrRouteNotFound
	}

	return nil
}
