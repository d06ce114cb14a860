package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port           string
	StoreDriver    string
	MongoURI       string
	JWTSecret      string
	JWTExpiry      string
	AllowedOrigins []string
	Redis          RedisConfig
	RateLimit      bool
	LockTTL        time.Duration
	LockWait       time.Duration
}

// RedisConfig holds connection and pool settings for pkg/redis.
// Redis is optional: an empty Host and URL disables it.
type RedisConfig struct {
	URL                string
	Host               string
	Port               string
	Password           string
	DB                 int
	PoolSize           int
	MinIdleConns       int
	MaxRetries         int
	RetryDelay         time.Duration
	DialTimeout        time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	PoolTimeout        time.Duration
	IdleTimeout        time.Duration
	IdleCheckFrequency time.Duration
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

// Load reads the environment (and .env when present) and exits on invalid settings.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func FromEnv() (*Config, error) {
	storeDriver := strings.ToLower(getEnv("STORE_DRIVER", StoreMongo))
	if storeDriver != StoreMongo && storeDriver != StoreMemory {
		return nil, errors.New("STORE_DRIVER must be mongo or memory")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if storeDriver == StoreMongo && mongoURI == "" {
		return nil, errors.New("MONGO_URI environment variable is not set")
	}

	allowedOrigins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	origins := make([]string, 0)
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		StoreDriver:    storeDriver,
		MongoURI:       mongoURI,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      os.Getenv("JWT_EXPIRY"),
		AllowedOrigins: origins,
		Redis:          loadRedisConfig(),
		RateLimit:      getBool("RATE_LIMIT_ENABLED", true),
		LockTTL:        getDuration("LOCK_TTL", 10*time.Second),
		LockWait:       getDuration("LOCK_WAIT", 5*time.Second),
	}, nil
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:                os.Getenv("REDIS_URL"),
		Host:               os.Getenv("REDIS_HOST"),
		Port:               getEnv("REDIS_PORT", "6379"),
		Password:           os.Getenv("REDIS_PASSWORD"),
		DB:                 getInt("REDIS_DB", 0),
		PoolSize:           getInt("REDIS_POOL_SIZE", 10),
		MinIdleConns:       getInt("REDIS_MIN_IDLE_CONNS", 2),
		MaxRetries:         getInt("REDIS_MAX_RETRIES", 3),
		RetryDelay:         getDuration("REDIS_RETRY_DELAY", time.Second),
		DialTimeout:        getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:        getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:       getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		PoolTimeout:        getDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
		IdleTimeout:        getDuration("REDIS_IDLE_TIMEOUT", 5*time.Minute),
		IdleCheckFrequency: getDuration("REDIS_IDLE_CHECK_FREQUENCY", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
