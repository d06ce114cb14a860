package handlers

import (
	"net/http"

	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type RouteHandler struct {
	routeService *services.RouteService
	validator    *validator.Validate
}

func NewRouteHandler(routeService *services.RouteService) *RouteHandler {
	return &RouteHandler{
		routeService: routeService,
		validator:    validator.New(),
	}
}

func (h *RouteHandler) GetRoutes(c *gin.Context) {
	routes, err := h.routeService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Routes retrieved successfully", routes)
}

func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req services.CreateRouteRequest
	if !bind(c, h.validator, &req) {
		return
	}

	route, err := h.routeService.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Route created successfully", route)
}

// DeleteRoute refuses routes that trips still reference.
func (h *RouteHandler) DeleteRoute(c *gin.Context) {
	if err := h.routeService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Route deleted successfully", nil)
}
