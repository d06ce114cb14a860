package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether a client may call an endpoint category.
// retryAfter is only meaningful when allowed is false.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string, category string) (allowed bool, retryAfter time.Duration, err error)
	Limit(category string) RateLimit
	GetStats() RateLimiterStats
}

type RateLimit struct {
	RequestsPerMinute int           `json:"requestsPerMinute"`
	BurstSize         int           `json:"burstSize"`
	WindowSize        time.Duration `json:"windowSize"`
}

type RateLimiterStats struct {
	TotalRequests   int64 `json:"totalRequests"`
	BlockedRequests int64 `json:"blockedRequests"`
	ActiveClients   int   `json:"activeClients"`
}
