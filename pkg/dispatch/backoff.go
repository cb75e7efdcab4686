package dispatch

import (
	"context"
	"time"
)

// backoff produces the exponential retry schedule for reconnection:
// initial, 2×initial, 4×initial, … capped at max. Reset after a
// successful negotiation so the next outage starts over.
type backoff struct {
	initial time.Duration
	max     time.Duration
	attempt int
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max}
}

// next returns the delay for the upcoming retry and advances the
// schedule.
func (b *backoff) next() time.Duration {
	d := b.initial
	if b.attempt > 0 {
		shift := uint(b.attempt)
		if shift > 16 {
			shift = 16
		}
		d = b.initial << shift
	}
	if d > b.max {
		d = b.max
	}
	b.attempt++
	return d
}

// reset restarts the schedule from the initial delay.
func (b *backoff) reset() {
	b.attempt = 0
}

// wait sleeps for the next delay or until the context is cancelled.
func (b *backoff) wait(ctx context.Context) error {
	t := time.NewTimer(b.next())
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
