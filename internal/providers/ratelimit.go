package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket limiting requests per minute.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	tokens            float64
	lastUpdate        time.Time

	totalConsumed int64
	totalWaited   time.Duration
}

// NewRateLimiter creates a limiter with the given per-minute budget.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 150
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	waitStart := time.Now()
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1.0 {
			r.tokens--
			r.totalConsumed++
			r.totalWaited += time.Since(waitStart)
			r.mu.Unlock()
			return nil
		}
		// Time until the next whole token accrues.
		deficit := 1.0 - r.tokens
		wait := time.Duration(deficit / float64(r.requestsPerMinute) * float64(time.Minute))
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill accrues tokens based on elapsed time. Caller holds the lock.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now

	r.tokens += elapsed.Minutes() * float64(r.requestsPerMinute)
	if max := float64(r.requestsPerMinute); r.tokens > max {
		r.tokens = max
	}
}

// Stats reports consumed tokens and total wait time.
func (r *RateLimiter) Stats() (consumed int64, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalConsumed, r.totalWaited
}
