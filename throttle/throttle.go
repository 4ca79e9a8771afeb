package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum spacing between upstream supplier calls.
// One shared instance paces all calls process-wide; the wait suspends only
// the calling goroutine, so concurrent cache hits are unaffected.
type Throttle struct {
	limiter *rate.Limiter
}

// New creates a throttle that grants at most one acquisition per interval.
func New(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		minInterval = time.Millisecond
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Acquire blocks until the minimum interval since the last grant has
// elapsed, or until the context is cancelled.
func (t *Throttle) Acquire(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
