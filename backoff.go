package abtest

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
	maxJitter      = time.Second
)

// backoff handles exponential backoff with jitter
type backoff struct {
	current time.Duration
	jitter  func() time.Duration
}

func newBackoff() *backoff {
	return &backoff{
		current: initialBackoff,
		jitter: func() time.Duration {
			return rand.N(maxJitter)
		},
	}
}

// next returns the next backoff duration and doubles the base, up to maxBackoff.
func (b *backoff) next() time.Duration {
	d := b.current + b.jitter()
	b.current = min(b.current*2, maxBackoff)
	return d
}

func (b *backoff) reset() {
	b.current = initialBackoff
}

// wait waits for the next backoff duration, or until ctx is done.
// It reports whether the full duration elapsed.
func (b *backoff) wait(ctx context.Context) bool {
	t := time.NewTimer(b.next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
