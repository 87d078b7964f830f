package wait

import (
	"context"
	"time"
)

// Predicate reports whether the awaited condition holds. An error means
// the condition could not be read yet and counts as "not satisfied".
type Predicate func(ctx context.Context) (bool, error)

// Clock sleeps. Tests swap it for a simulated clock.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealClock returns a Clock backed by timers
func RealClock() Clock {
	return realClock{}
}

// Poller waits for a predicate with a fixed interval and a bounded number
// of attempts
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Clock       Clock
}

// NewPoller creates a poller using the real clock
func NewPoller(interval time.Duration, maxAttempts int) *Poller {
	return &Poller{
		Interval:    interval,
		MaxAttempts: maxAttempts,
		Clock:       RealClock(),
	}
}

// Until calls predicate up to MaxAttempts times, sleeping Interval between
// attempts. It returns true as soon as predicate does, and false once the
// attempts are used up or ctx is done. It never returns an error: callers
// decide whether exhaustion matters.
func (p *Poller) Until(ctx context.Context, predicate Predicate) bool {
	clock := p.Clock
	if clock == nil {
		clock = RealClock()
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		if ok, err := predicate(ctx); err == nil && ok {
			return true
		}

		if attempt == p.MaxAttempts {
			break
		}
		if err := clock.Sleep(ctx, p.Interval); err != nil {
			return false
		}
	}

	return false
}
