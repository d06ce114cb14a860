package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"fleet-mileage/internal/api/middleware"
	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// AdminHandler exposes trip records and reports to administrators.
type AdminHandler struct {
	coordinator *services.TripCoordinator
	reports     *services.ReportService
	validator   *validator.Validate
}

func NewAdminHandler(coordinator *services.TripCoordinator, reports *services.ReportService) *AdminHandler {
	return &AdminHandler{
		coordinator: coordinator,
		reports:     reports,
		validator:   validator.New(),
	}
}

// GetTrips lists filtered trip records, paginated.
func (h *AdminHandler) GetTrips(c *gin.Context) {
	filter, err := tripFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	trips, err := h.reports.ListTrips(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", defaultPageSize), maxPageSize)

	// pages past the end are empty; checked before multiplying so a huge
	// page cannot overflow
	start := len(trips)
	if page-1 < len(trips)/limit+1 {
		start = min((page-1)*limit, len(trips))
	}
	end := min(start+limit, len(trips))

	utils.PaginatedResponse(c, http.StatusOK, "Trips retrieved successfully", trips[start:end],
		utils.NewPagination(page, limit, int64(len(trips))))
}

// OpenTrip opens a trip on behalf of the user named in the body.
func (h *AdminHandler) OpenTrip(c *gin.Context) {
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

func (h *AdminHandler) CloseTrip(c *gin.Context) {
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

// EditTrip corrects readings, timestamps or the note, or reopens the trip.
func (h *AdminHandler) EditTrip(c *gin.Context) {
	var req services.EditTripRequest
	if !bind(c, h.validator, &req) {
		return
	}

	trip, err := h.coordinator.EditTrip(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip updated successfully", trip)
}

func (h *AdminHandler) DeleteTrip(c *gin.Context) {
	if err := h.coordinator.DeleteTrip(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Trip deleted successfully", nil)
}

// GetSummary groups the filtered trips by ?groupBy=user|vehicle|role.
func (h *AdminHandler) GetSummary(c *gin.Context) {
	filter, err := tripFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	summary, err := h.reports.Summarize(c.Request.Context(), filter, c.DefaultQuery("groupBy", services.GroupByUser))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Summary retrieved successfully", summary)
}

// ExportCSV returns the filtered trips as a CSV attachment.
func (h *AdminHandler) ExportCSV(c *gin.Context) {
	filter, err := tripFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.reports.ExportCSV(c.Request.Context(), filter, &buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("trips-%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
