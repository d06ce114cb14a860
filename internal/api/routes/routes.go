package routes

import (
	"fleet-mileage/internal/api/handlers"
	"fleet-mileage/internal/api/middleware"
	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/internal/services"
	"fleet-mileage/pkg/cache"
	"fleet-mileage/pkg/jwt"
	"fleet-mileage/pkg/lock"
	"fleet-mileage/pkg/ratelimit"
	"fleet-mileage/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies are the shared components built by main. DB, RedisClient,
// CacheManager and Limiter may be nil.
type Dependencies struct {
	Stores       *repository.Stores
	DB           *mongo.Database
	RedisClient  *redis.Client
	CacheManager cache.CacheManager
	Locker       lock.Locker
	Limiter      ratelimit.RateLimiter
	JWT          *jwt.JWTUtil
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// Initialize services
	userService := services.NewUserService(deps.Stores.Users)
	authService := services.NewAuthService(deps.Stores.Users, deps.JWT)

	vehicleService := services.NewVehicleService(deps.Stores.Vehicles)
	routeService := services.NewRouteService(deps.Stores.Routes, deps.Stores.Trips)
	if deps.CacheManager != nil {
		vehicleService.SetCacheManager(deps.CacheManager)
		routeService.SetCacheManager(deps.CacheManager)
	}

	coordinator := services.NewTripCoordinator(deps.Stores.Trips, deps.Stores.Routes, vehicleService, userService, deps.Locker)
	reportService := services.NewReportService(deps.Stores.Trips, deps.Stores.Users, deps.Stores.Vehicles)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	userHandler := handlers.NewUserHandler(userService)
	vehicleHandler := handlers.NewVehicleHandler(vehicleService, coordinator)
	routeHandler := handlers.NewRouteHandler(routeService)
	tripHandler := handlers.NewTripHandler(coordinator)
	adminHandler := handlers.NewAdminHandler(coordinator, reportService)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.RedisClient)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.RequestID())

	// Public routes
	public := api.Group("")
	if deps.Limiter != nil {
		public.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}
	{
		public.GET("/health", healthHandler.HealthCheck)
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/refresh", authHandler.RefreshToken)
	}

	// Protected routes; rate limiting runs after auth so limits apply per user
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.JWT))
	if deps.Limiter != nil {
		protected.Use(middleware.RateLimitMiddleware(deps.Limiter))
	}
	{
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/password", authHandler.ChangePassword)

		protected.GET("/vehicles/eligible", vehicleHandler.GetEligible)
		protected.GET("/routes", routeHandler.GetRoutes)

		trips := protected.Group("/trips")
		{
			trips.GET("/current", tripHandler.GetCurrent)
			trips.GET("/mine", tripHandler.GetMine)
			trips.GET("/:id", tripHandler.GetTrip)
			trips.POST("", tripHandler.OpenTrip)
			trips.PUT("/:id/close", tripHandler.CloseTrip)
		}

		admin := protected.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/vehicles", vehicleHandler.GetVehicles)
			admin.GET("/vehicles/:id", vehicleHandler.GetVehicle)
			admin.POST("/vehicles", vehicleHandler.CreateVehicle)
			admin.PATCH("/vehicles/:id/active", vehicleHandler.SetActive)

			admin.POST("/routes", routeHandler.CreateRoute)
			admin.DELETE("/routes/:id", routeHandler.DeleteRoute)

			admin.GET("/admin/trips", adminHandler.GetTrips)
			admin.POST("/admin/trips", adminHandler.OpenTrip)
			admin.PUT("/admin/trips/:id/close", adminHandler.CloseTrip)
			admin.PATCH("/admin/trips/:id", adminHandler.EditTrip)
			admin.DELETE("/admin/trips/:id", adminHandler.DeleteTrip)

			admin.GET("/admin/reports/summary", adminHandler.GetSummary)
			admin.GET("/admin/reports/export", adminHandler.ExportCSV)

			admin.GET("/admin/users", userHandler.GetUsers)
			admin.POST("/admin/users", userHandler.CreateUser)
			admin.PATCH("/admin/users/:id", userHandler.UpdateUser)
			admin.PUT("/admin/users/:id/password", userHandler.ResetPassword)
		}
	}
}
