package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// MemoryRateLimiter keeps one token bucket per client and category.
type MemoryRateLimiter struct {
	config   *Config
	stats    RateLimiterStats
	buckets  map[string]*bucket
	mu       sync.Mutex
	stopOnce sync.Once
	stop     chan struct{}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	limiter := &MemoryRateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go limiter.cleanupLoop()
	return limiter
}

func (m *MemoryRateLimiter) Allow(_ context.Context, clientID string, category string) (bool, time.Duration, error) {
	if !m.config.Enabled {
		return true, 0, nil
	}

	atomic.AddInt64(&m.stats.TotalRequests, 1)

	limit := m.config.GetLimit(category)
	b := m.bucketFor(clientID+":"+category, limit)

	reservation := b.limiter.Reserve()
	if !reservation.OK() {
		atomic.AddInt64(&m.stats.BlockedRequests, 1)
		return false, limit.WindowSize, nil
	}
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		atomic.AddInt64(&m.stats.BlockedRequests, 1)
		return false, delay, nil
	}
	return true, 0, nil
}

func (m *MemoryRateLimiter) Limit(category string) RateLimit {
	return m.config.GetLimit(category)
}

func (m *MemoryRateLimiter) GetStats() RateLimiterStats {
	m.mu.Lock()
	active := len(m.buckets)
	m.mu.Unlock()

	return RateLimiterStats{
		TotalRequests:   atomic.LoadInt64(&m.stats.TotalRequests),
		BlockedRequests: atomic.LoadInt64(&m.stats.BlockedRequests),
		ActiveClients:   active,
	}
}

// Close stops the cleanup goroutine.
func (m *MemoryRateLimiter) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *MemoryRateLimiter) bucketFor(key string, limit RateLimit) *bucket {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		every := limit.WindowSize / time.Duration(max(1, limit.RequestsPerMinute))
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), max(1, limit.BurstSize))}
		m.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b
}

func (m *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.config.CleanupInterval)
			m.mu.Lock()
			for key, b := range m.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(m.buckets, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
