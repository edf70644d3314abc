package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Limiter names used by the storage backends
const (
	LimiterSheetsRead  = "sheets_read"
	LimiterSheetsWrite = "sheets_write"
)

// NewSheetsLimiter creates read and write buckets for the Google Sheets API.
// The API quota is per minute per user and applies to reads and writes separately.
func NewSheetsLimiter(requestsPerMinute int) *MultiLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	m := NewMultiLimiter()
	perSecond := float64(requestsPerMinute) / 60
	m.AddLimiter(LimiterSheetsRead, perSecond, 5)
	m.AddLimiter(LimiterSheetsWrite, perSecond, 5)
	return m
}
