// Package pacer spaces out calls to external services with a fixed minimum
// interval. Batch jobs hold one pacer per delay class (between events, between
// secondary requests) and call Wait before each outbound call.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum gap between successive Wait returns.
// A zero-value or nil Pacer never blocks.
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// New returns a pacer that allows one call per interval. The first call is
// never delayed. A non-positive interval disables pacing.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{}
	}
	return &Pacer{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Interval reports the configured gap.
func (p *Pacer) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}
