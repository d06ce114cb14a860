package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/pkg/utils"

	"github.com/gin-gonic/gin"
)

// respondError writes err as a coded JSON error. Anything that is not a
// DomainError is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	de, ok := models.AsDomainError(err)
	if !ok {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	utils.CodedErrorResponse(c, statusFor(de), de.Message, de.Code, de.Floor, nil)
}

func statusFor(de *models.DomainError) int {
	switch de.Kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindAuth:
		if errors.Is(de, models.ErrInvalidLogin) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case models.KindPrecondition:
		if isOdometerFloor(de) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusConflict
	case models.KindConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func isOdometerFloor(de *models.DomainError) bool {
	return errors.Is(de, models.ErrOdometerBelowVehicle) ||
		errors.Is(de, models.ErrOdometerBelowOpening) ||
		errors.Is(de, models.ErrOdometerMismatch)
}

// parseDate accepts either a calendar date or an RFC3339 timestamp.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := models.ParseTimestamp(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// tripFilter reads the reporting filter from the query string.
func tripFilter(c *gin.Context) (models.TripFilter, error) {
	filter := models.TripFilter{
		UserID:         c.Query("userId"),
		VehicleID:      c.Query("vehicleId"),
		Role:           c.Query("role"),
		RouteSubstring: c.Query("route"),
	}

	var err error
	if filter.From, err = parseDate(c.Query("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate(c.Query("to")); err != nil {
		return filter, err
	}

	switch strings.ToLower(c.Query("status")) {
	case "", "all":
	case "open":
		filter.OpenOnly = true
	default:
		return filter, models.Invalid("status must be open or all")
	}
	return filter, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
