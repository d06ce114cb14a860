package main

import (
	"log"
	"time"

	"fleet-mileage/internal/api/routes"
	"fleet-mileage/internal/config"
	"fleet-mileage/internal/repository"
	"fleet-mileage/pkg/cache"
	"fleet-mileage/pkg/database"
	"fleet-mileage/pkg/jwt"
	"fleet-mileage/pkg/lock"
	"fleet-mileage/pkg/ratelimit"
	"fleet-mileage/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg := config.Load()

	deps := routes.Dependencies{}

	// Connect the store
	var db *mongo.Database
	if cfg.StoreDriver == config.StoreMongo {
		var err error
		db, err = database.Connect(cfg.MongoURI)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		defer database.Disconnect(db.Client())
		deps.Stores = repository.NewMongoStores(db)
		deps.DB = db
	} else {
		log.Println("Using in-memory store; data is lost on restart")
		deps.Stores = repository.NewMemoryStores()
	}

	// Redis is optional; without it locks and rate limits are process-local
	rateLimitConfig := ratelimit.DefaultConfig()
	rateLimitConfig.Enabled = cfg.RateLimit

	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(cfg.Redis)
		defer redisClient.Close()

		healthStatus := redisClient.HealthCheck()
		if healthStatus.IsConnected {
			log.Printf("Redis connected successfully at %s", healthStatus.ConnectionInfo)
		} else {
			log.Printf("Redis connection failed: %s (will retry automatically)", healthStatus.Error)
		}

		deps.RedisClient = redisClient
		deps.CacheManager = cache.NewCacheManager(redisClient, cache.DefaultCacheConfig())
		deps.Locker = lock.NewRedisLocker(redisClient, "lock:", cfg.LockTTL, cfg.LockWait)
		deps.Limiter = ratelimit.NewRedisRateLimiter(redisClient, rateLimitConfig)
	} else {
		log.Println("Redis not configured; caching disabled")
		memoryLimiter := ratelimit.NewMemoryRateLimiter(rateLimitConfig)
		defer memoryLimiter.Close()

		deps.Locker = lock.NewMemoryLocker(cfg.LockWait)
		deps.Limiter = memoryLimiter
	}

	jwtExpiry, err := time.ParseDuration(cfg.JWTExpiry)
	if err != nil && cfg.JWTExpiry != "" {
		log.Printf("Invalid JWT_EXPIRY %q, using default: %v", cfg.JWTExpiry, err)
	}
	deps.JWT = jwt.NewJWTUtil(cfg.JWTSecret, jwtExpiry)

	// Setup Gin router
	router := gin.Default()

	// CORS middleware
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID", "Retry-After"},
	}

	// Handle wildcard origin for development
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false // Cannot use credentials with AllowAllOrigins
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	}

	router.Use(cors.New(corsConfig))

	// Setup routes
	routes.SetupRoutes(router, deps)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(router.Run(":" + cfg.Port))
}
