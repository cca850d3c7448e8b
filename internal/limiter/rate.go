package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateGate is a token bucket admitting n events per period. The bucket holds
// a single token, so admissions are spread evenly and any half-open window
// of one period admits at most n events.
type RateGate struct {
	lim *rate.Limiter
	n   int
	per time.Duration
}

// NewRateGate admits n events per period; n < 1 disables limiting.
func NewRateGate(n int, per time.Duration) *RateGate {
	if n < 1 || per <= 0 {
		return &RateGate{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateGate{lim: rate.NewLimiter(rate.Every(per/time.Duration(n)), 1), n: n, per: per}
}

// PerMinute admits rpm events per minute.
func PerMinute(rpm int) *RateGate { return NewRateGate(rpm, time.Minute) }

// Wait blocks until an event is admitted or ctx is done.
func (g *RateGate) Wait(ctx context.Context) error { return g.lim.Wait(ctx) }

// Interval is the spacing between admissions, zero when unlimited.
func (g *RateGate) Interval() time.Duration {
	if g.n == 0 {
		return 0
	}
	return g.per / time.Duration(g.n)
}
