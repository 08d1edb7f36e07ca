// Package ratelimit gates request admission on fixed-window counters kept in
// a shared external store. Each client identity gets one counter per minute
// window and one per hour window; windows reset purely by key expiry.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Window identifiers, also used as metric labels.
const (
	WindowMinute = "minute"
	WindowHour   = "hour"
)

// CounterStore provides an atomic counter with expiry. Incr creates the key
// with the given TTL on first increment and returns the count after the
// increment. Concurrent increments for the same key are serialized by the
// backing store.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Window     string // window that rejected, empty when allowed
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter checks per-client request counts against minute and hour thresholds.
type Limiter struct {
	counters  CounterStore
	perMinute int64
	perHour   int64
	now       func() time.Time
}

func New(counters CounterStore, perMinute, perHour int) *Limiter {
	return &Limiter{
		counters:  counters,
		perMinute: int64(perMinute),
		perHour:   int64(perHour),
		now:       time.Now,
	}
}

// WithClock sets the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check increments the client's minute counter and, if the minute window
// still admits, the hour counter. The increment happens before the threshold
// comparison, so rejected requests count too. A store failure is returned to
// the caller; admission never fails open.
func (l *Limiter) Check(ctx context.Context, identity string) (Decision, error) {
	now := l.now().Unix()

	minuteKey := fmt.Sprintf("rate_limit:minute:%s:%d", identity, now/60)
	minuteCount, err := l.counters.Incr(ctx, minuteKey, time.Minute)
	if err != nil {
		return Decision{}, fmt.Errorf("minute counter: %w", err)
	}
	if minuteCount > l.perMinute {
		return Decision{
			Window:     WindowMinute,
			Count:      minuteCount,
			Limit:      l.perMinute,
			RetryAfter: time.Minute,
		}, nil
	}

	hourKey := fmt.Sprintf("rate_limit:hour:%s:%d", identity, now/3600)
	hourCount, err := l.counters.Incr(ctx, hourKey, time.Hour)
	if err != nil {
		return Decision{}, fmt.Errorf("hour counter: %w", err)
	}
	if hourCount > l.perHour {
		return Decision{
			Window:     WindowHour,
			Count:      hourCount,
			Limit:      l.perHour,
			RetryAfter: time.Hour,
		}, nil
	}

	return Decision{Allowed: true}, nil
}
