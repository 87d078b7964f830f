package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per tenant
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	perHour  int
}

// NewLimiter creates a limiter allowing requestsPerHour per tenant with
// bursts of up to burst requests
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerHour) / 3600.0),
		burst:    burst,
		perHour:  requestsPerHour,
	}
}

// PerHour returns the configured hourly allowance
func (l *Limiter) PerHour() int {
	return l.perHour
}

func (l *Limiter) get(tenantID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[tenantID]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[tenantID] = limiter
	}

	return limiter
}

// Allow reports whether tenantID may make a request now and consumes a
// token if so
func (l *Limiter) Allow(tenantID string) bool {
	return l.get(tenantID).Allow()
}

// Remaining returns the whole tokens left for tenantID
func (l *Limiter) Remaining(tenantID string) int {
	tokens := l.get(tenantID).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// RetryAfter estimates how long tenantID must wait for the next token.
// It reads the bucket without reserving from it.
func (l *Limiter) RetryAfter(tenantID string) time.Duration {
	limiter := l.get(tenantID)
	tokens := limiter.Tokens()
	if tokens >= 1 {
		return 0
	}
	if limiter.Limit() <= 0 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(limiter.Limit()) * float64(time.Second))
}
