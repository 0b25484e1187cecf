package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter spaces model requests to a per-minute budget.
type rateLimiter struct {
	limiter *rate.Limiter
}

// newRateLimiter allows requestsPerMinute requests with a burst of the same size.
func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	every := time.Minute / time.Duration(requestsPerMinute)
	return &rateLimiter{limiter: rate.NewLimiter(rate.Every(every), requestsPerMinute)}
}

// wait blocks until a request is allowed or ctx ends.
func (r *rateLimiter) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
