package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// DefaultRPS matches the request budget allowed by the hh.ru API.
const DefaultRPS = 20

// Limiter spaces outbound calls so that at most rps requests are started per
// second. It does not queue or batch, it only delays the caller.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter for the given requests-per-second budget. Non-positive
// values fall back to DefaultRPS.
func New(rps int) *Limiter {
	if rps <= 0 {
		rps = DefaultRPS
	}

	// Burst of one: every call pays the full interval since the previous one.
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next call is allowed to start or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
