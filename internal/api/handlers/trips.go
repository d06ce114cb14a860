package handlers

import (
	"net/http"

	"fleet-mileage/internal/api/middleware"
	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const defaultMineLimit = 20

// TripHandler serves drivers and co-pilots acting on their own trips.
type TripHandler struct {
	coordinator *services.TripCoordinator
	validator   *validator.Validate
}

func NewTripHandler(coordinator *services.TripCoordinator) *TripHandler {
	return &TripHandler{
		coordinator: coordinator,
		validator:   validator.New(),
	}
}

// GetCurrent returns the caller's open trip, or null when there is none.
func (h *TripHandler) GetCurrent(c *gin.Context) {
	current, err := h.coordinator.CurrentTrip(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Current trip retrieved successfully", current)
}

// GetMine lists the caller's recent trips, newest first.
func (h *TripHandler) GetMine(c *gin.Context) {
	limit := queryInt(c, "limit", defaultMineLimit)

	trips, err := h.coordinator.ListMine(c.Request.Context(), middleware.ActorFrom(c), int64(limit))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trips retrieved successfully", trips)
}

// GetTrip returns one trip; non-admins only see their own.
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.coordinator.GetTrip(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip retrieved successfully", trip)
}

func (h *TripHandler) OpenTrip(c *gin.Context) {
	var req services.OpenTripRequest
	if !bind(c, h.validator, &req) {
		return
	}

	trip, err := h.coordinator.OpenTrip(c.Request.Context(), middleware.ActorFrom(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Trip opened successfully", trip)
}

func (h *TripHandler) CloseTrip(c *gin.Context) {
	var req services.CloseTripRequest
	if !bind(c, h.validator, &req) {
		return
	}

	trip, err := h.coordinator.CloseTrip(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip closed successfully", trip)
}
