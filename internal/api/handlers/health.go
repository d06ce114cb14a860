package handlers

import (
	"context"
	"net/http"
	"time"

	"fleet-mileage/pkg/database"
	"fleet-mileage/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

type HealthHandler struct {
	db          *mongo.Database
	redisClient *redis.Client
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler accepts nil for either dependency: a nil db means the
// in-memory store is in use, a nil redisClient means Redis is not configured.
func NewHealthHandler(db *mongo.Database, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true

	storeStatus := h.checkStore(c.Request.Context())
	response.Services["store"] = storeStatus
	if !storeStatus["healthy"].(bool) {
		overallHealthy = false
	}

	// Redis only backs caching and rate limiting, so it degrades rather than fails
	redisStatus := h.checkRedis()
	response.Services["redis"] = redisStatus

	if overallHealthy {
		response.Status = "healthy"
		if redisStatus["healthy"] == false {
			response.Status = "degraded"
		}
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) map[string]interface{} {
	if h.db == nil {
		return map[string]interface{}{
			"service": "memory",
			"healthy": true,
		}
	}

	status := map[string]interface{}{
		"service": "mongodb",
		"healthy": false,
	}

	if err := database.Health(ctx, h.db); err != nil {
		status["error"] = err.Error()
	} else {
		status["healthy"] = true
		status["message"] = "Connected"
	}

	return status
}

func (h *HealthHandler) checkRedis() map[string]interface{} {
	status := map[string]interface{}{
		"service": "redis",
	}

	if h.redisClient == nil {
		status["enabled"] = false
		return status
	}

	healthStatus := h.redisClient.HealthCheck()
	status["enabled"] = true
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing

	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}

	status["connectionStats"] = h.redisClient.GetConnectionStats()

	return status
}
