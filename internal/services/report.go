package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	GroupByUser    = "user"
	GroupByVehicle = "vehicle"
	GroupByRole    = "role"

	unknownUser    = "(unknown user)"
	unknownVehicle = "(unknown vehicle)"
)

var csvHeader = []string{
	"User", "Role", "Vehicle", "Origin", "Destination",
	"Start km", "Opened at", "End km", "Closed at", "Distance km", "Log note",
}

// ReportService is the read-only projection over trips used by dashboards
// and exports. Missing users or vehicles are shown as placeholders.
type ReportService struct {
	trips    repository.TripStore
	users    repository.UserStore
	vehicles repository.VehicleStore
}

func NewReportService(trips repository.TripStore, users repository.UserStore, vehicles repository.VehicleStore) *ReportService {
	return &ReportService{
		trips:    trips,
		users:    users,
		vehicles: vehicles,
	}
}

type Summary struct {
	Key           string  `json:"key"`
	Label         string  `json:"label"`
	TripCount     int     `json:"tripCount"`
	ClosedCount   int     `json:"closedCount"`
	Percentage    float64 `json:"percentage"`
	TotalDistance int     `json:"totalDistance"`
}

// ListTrips returns trips matching filter, newest first.
func (s *ReportService) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	query, err := tripQuery(filter)
	if err != nil {
		return nil, err
	}

	trips, err := s.trips.Find(ctx, query)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(filter.RouteSubstring))
	if needle == "" {
		return trips, nil
	}

	matched := make([]*models.Trip, 0, len(trips))
	for _, trip := range trips {
		if strings.Contains(strings.ToLower(trip.Origin), needle) ||
			strings.Contains(strings.ToLower(trip.Destination), needle) {
			matched = append(matched, trip)
		}
	}
	return matched, nil
}

func (s *ReportService) Summarize(ctx context.Context, filter models.TripFilter, groupBy string) ([]*Summary, error) {
	switch groupBy {
	case GroupByUser, GroupByVehicle, GroupByRole:
	default:
		return nil, models.Invalid("groupBy must be one of user, vehicle, role")
	}

	trips, err := s.ListTrips(ctx, filter)
	if err != nil {
		return nil, err
	}

	labels, err := s.labels(ctx, groupBy)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*Summary)
	for _, trip := range trips {
		key := groupKey(trip, groupBy)
		summary, ok := groups[key]
		if !ok {
			summary = &Summary{Key: key, Label: labels(key)}
			groups[key] = summary
		}
		summary.TripCount++
		if distance, closed := trip.Distance(); closed {
			summary.ClosedCount++
			summary.TotalDistance += distance
		}
	}

	summaries := make([]*Summary, 0, len(groups))
	for _, summary := range groups {
		summary.Percentage = math.Round(float64(summary.TripCount)/float64(len(trips))*1000) / 10
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TripCount != summaries[j].TripCount {
			return summaries[i].TripCount > summaries[j].TripCount
		}
		return summaries[i].Label < summaries[j].Label
	})
	return summaries, nil
}

// ExportCSV writes the filtered trips as CSV, one row per trip.
func (s *ReportService) ExportCSV(ctx context.Context, filter models.TripFilter, w io.Writer) error {
	trips, err := s.ListTrips(ctx, filter)
	if err != nil {
		return err
	}

	users, err := s.users.FindAll(ctx)
	if err != nil {
		return err
	}
	emails := make(map[primitive.ObjectID]string, len(users))
	for _, user := range users {
		emails[user.ID] = user.Email
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, trip := range trips {
		identifier, ok := emails[trip.UserID]
		if !ok {
			identifier = trip.UserID.Hex()
		}
		plate := trip.VehiclePlate
		if plate == "" {
			plate = unknownVehicle
		}

		row := []string{
			identifier,
			trip.Role,
			plate,
			trip.Origin,
			trip.Destination,
			strconv.Itoa(trip.Opening.StartOdometer),
			trip.Opening.OpenedAt.Format(time.RFC3339),
			"open", "", "", "",
		}
		if trip.Closing != nil {
			distance, _ := trip.Distance()
			row[7] = strconv.Itoa(trip.Closing.EndOdometer)
			row[8] = trip.Closing.ClosedAt.Format(time.RFC3339)
			row[9] = strconv.Itoa(distance)
			row[10] = trip.Closing.LogNote
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// labels resolves group keys to display names from the current users and
// vehicles.
func (s *ReportService) labels(ctx context.Context, groupBy string) (func(string) string, error) {
	names := make(map[string]string)

	switch groupBy {
	case GroupByUser:
		users, err := s.users.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			names[user.ID.Hex()] = user.Name
		}
		return lookup(names, unknownUser), nil

	case GroupByVehicle:
		vehicles, err := s.vehicles.FindAll(ctx, models.VehicleStatusAll)
		if err != nil {
			return nil, err
		}
		for _, vehicle := range vehicles {
			names[vehicle.ID.Hex()] = vehicle.PlateNumber
		}
		return lookup(names, unknownVehicle), nil
	}

	return func(key string) string { return key }, nil
}

func lookup(names map[string]string, placeholder string) func(string) string {
	return func(key string) string {
		if name, ok := names[key]; ok {
			return name
		}
		return placeholder
	}
}

func groupKey(trip *models.Trip, groupBy string) string {
	switch groupBy {
	case GroupByUser:
		return trip.UserID.Hex()
	case GroupByVehicle:
		return trip.VehicleID.Hex()
	default:
		return trip.Role
	}
}

func tripQuery(filter models.TripFilter) (models.TripQuery, error) {
	query := models.TripQuery{
		Role:       filter.Role,
		OpenOnly:   filter.OpenOnly,
		OpenedFrom: filter.From,
	}

	if filter.Role != "" && !models.IsTripRole(filter.Role) {
		return query, models.Invalid("unknown role %q", filter.Role)
	}
	if filter.UserID != "" {
		id, err := primitive.ObjectIDFromHex(filter.UserID)
		if err != nil {
			return query, models.Invalid("invalid userId")
		}
		query.UserID = &id
	}
	if filter.VehicleID != "" {
		id, err := primitive.ObjectIDFromHex(filter.VehicleID)
		if err != nil {
			return query, models.Invalid("invalid vehicleId")
		}
		query.VehicleID = &id
	}
	if filter.To != nil {
		to := endOfDay(*filter.To)
		query.OpenedTo = &to
	}
	if query.OpenedFrom != nil && query.OpenedTo != nil && query.OpenedTo.Before(*query.OpenedFrom) {
		return query, models.Invalid("to must not be before from")
	}
	return query, nil
}

// endOfDay extends a date without a time of day to its last instant.
func endOfDay(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t
}
