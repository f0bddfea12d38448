package fetch

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultBackoff applies when a 429 carries no usable Retry-After.
const defaultBackoff = 30 * time.Second

// RateLimiter throttles requests to the crawled host.
// It uses a token bucket plus a shared pause after a 429 response.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter. A non-positive rate disables throttling.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(requestsPerSecond)))
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent, honouring any pause set by
// RecordRateLimitError first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError pauses every worker until the server's retry time.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultBackoff
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if at := time.Now().Add(retryAfter); at.After(r.retryAt) {
		r.retryAt = at
	}
}

// PausedUntil returns the end of the current pause, zero if none was recorded.
func (r *RateLimiter) PausedUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}
