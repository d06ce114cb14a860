package ratelimit

import (
	"strings"
	"time"
)

type Config struct {
	// Limits per endpoint category; "default" is the fallback
	DefaultLimits map[string]RateLimit `json:"defaultLimits"`

	RedisKeyPrefix string `json:"redisKeyPrefix"`

	// Idle in-memory buckets are dropped after this long
	CleanupInterval time.Duration `json:"cleanupInterval"`

	Enabled bool `json:"enabled"`
}

func DefaultConfig() *Config {
	return &Config{
		DefaultLimits: map[string]RateLimit{
			"auth_login": {RequestsPerMinute: 10, BurstSize: 5, WindowSize: time.Minute},
			"auth":       {RequestsPerMinute: 30, BurstSize: 10, WindowSize: time.Minute},

			// co-pilots poll the current trip every 5 seconds
			"trips_read":  {RequestsPerMinute: 120, BurstSize: 40, WindowSize: time.Minute},
			"trips_write": {RequestsPerMinute: 30, BurstSize: 10, WindowSize: time.Minute},

			"vehicles": {RequestsPerMinute: 120, BurstSize: 30, WindowSize: time.Minute},
			"admin":    {RequestsPerMinute: 120, BurstSize: 30, WindowSize: time.Minute},
			"export":   {RequestsPerMinute: 10, BurstSize: 3, WindowSize: time.Minute},

			"health": {RequestsPerMinute: 600, BurstSize: 100, WindowSize: time.Minute},

			"default": {RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute},
		},
		RedisKeyPrefix:  "ratelimit:",
		CleanupInterval: 5 * time.Minute,
		Enabled:         true,
	}
}

// GetLimit returns the limit for a category, falling back to "default".
func (c *Config) GetLimit(category string) RateLimit {
	if limit, ok := c.DefaultLimits[category]; ok {
		return limit
	}
	if limit, ok := c.DefaultLimits["default"]; ok {
		return limit
	}
	return RateLimit{RequestsPerMinute: 60, BurstSize: 15, WindowSize: time.Minute}
}

// Category maps a method and route template (gin's FullPath) to a limit
// category.
func Category(method, route string) string {
	switch {
	case route == "/api/v1/health":
		return "health"
	case route == "/api/v1/auth/login":
		return "auth_login"
	case strings.HasPrefix(route, "/api/v1/auth"):
		return "auth"
	case route == "/api/v1/admin/reports/export":
		return "export"
	case strings.HasPrefix(route, "/api/v1/admin"):
		return "admin"
	case strings.HasPrefix(route, "/api/v1/trips"):
		if method == "GET" {
			return "trips_read"
		}
		return "trips_write"
	case strings.HasPrefix(route, "/api/v1/vehicles"), strings.HasPrefix(route, "/api/v1/routes"):
		return "vehicles"
	default:
		return "default"
	}
}
