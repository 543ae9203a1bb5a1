package hashpipe

import (
	"context"
	"math/rand"
	"time"
)

// Default backoff between retries of a failed batch.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Sleep waits for the current backoff duration, or until ctx is done, and
// doubles the duration for next time.
func (b *backoff) Sleep(ctx context.Context) error {
	// ±20% jitter
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	t := time.NewTimer(time.Duration(float64(b.current) + jitter))
	defer t.Stop()

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset resets the backoff to the initial duration.
func (b *backoff) Reset() {
	b.current = b.initial
}
