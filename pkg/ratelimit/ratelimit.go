package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter paces successive operations by pausing a fixed interval between them,
// optionally randomized by a jitter factor. It is safe for concurrent use.
type Limiter struct {
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	after    func(time.Duration) <-chan time.Time
}

// NewLimiter creates a limiter that pauses interval per Wait. Jitter is clamped
// to [0, 1] and spreads each pause uniformly over interval*(1±jitter).
// If interval is <= 0, the limiter does not block.
func NewLimiter(interval time.Duration, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Limiter{
		interval: interval,
		jitter:   jitter,
		after:    time.After,
	}
}

// Interval returns the configured base pause.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Delay returns the pause the next Wait will use.
func (l *Limiter) Delay() time.Duration {
	if l == nil || l.interval <= 0 {
		return 0
	}
	if l.jitter == 0 {
		return l.interval
	}
	factor := (rand.Float64() * 2) - 1.0 // -1.0 to 1.0
	d := l.interval + time.Duration(float64(l.interval)*l.jitter*factor)
	if d < 0 {
		return 0
	}
	return d
}

// Wait blocks for the next delay or until the context is canceled.
// A nil Limiter never blocks.
func (l *Limiter) Wait(ctx context.Context) error {
	d := l.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.after(d):
		return nil
	}
}
