package util

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles re-extraction in watch mode. A non-positive rate
// disables throttling.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter creates a token bucket refilled at perSecond tokens with the
// given burst.
func NewLimiter(perSecond float64, burst int) *Limiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{inner: rate.NewLimiter(limit, burst)}
}

// Allow consumes one token if available without blocking.
func (l *Limiter) Allow() bool {
	return l.inner.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.Wait(ctx)
}
