package handlers

import (
	"net/http"

	"fleet-mileage/internal/api/middleware"
	"fleet-mileage/internal/models"
	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type VehicleHandler struct {
	vehicleService *services.VehicleService
	coordinator    *services.TripCoordinator
	validator      *validator.Validate
}

func NewVehicleHandler(vehicleService *services.VehicleService, coordinator *services.TripCoordinator) *VehicleHandler {
	return &VehicleHandler{
		vehicleService: vehicleService,
		coordinator:    coordinator,
		validator:      validator.New(),
	}
}

// GetVehicles retrieves vehicles, optionally filtered by ?status=active|inactive
func (h *VehicleHandler) GetVehicles(c *gin.Context) {
	status := models.VehicleStatus(c.Query("status"))
	if status == "all" {
		status = models.VehicleStatusAll
	}

	vehicles, err := h.vehicleService.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicles retrieved successfully", vehicles)
}

// GetVehicle retrieves a specific vehicle by ID
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.vehicleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle retrieved successfully", vehicle)
}

// CreateVehicle creates a new vehicle
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req services.CreateVehicleRequest
	if !bind(c, h.validator, &req) {
		return
	}

	vehicle, err := h.vehicleService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Vehicle created successfully", vehicle)
}

// SetActive activates or deactivates a vehicle.
func (h *VehicleHandler) SetActive(c *gin.Context) {
	var req services.SetActiveRequest
	if !bind(c, h.validator, &req) {
		return
	}

	vehicle, err := h.vehicleService.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Vehicle updated successfully", vehicle)
}

// GetEligible lists the vehicles the caller may open a trip on.
func (h *VehicleHandler) GetEligible(c *gin.Context) {
	eligible, err := h.coordinator.EligibleVehicles(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Eligible vehicles retrieved successfully", eligible)
}
