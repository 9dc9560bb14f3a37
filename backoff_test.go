package abtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noJitter() time.Duration { return 0 }

func TestBackoff(t *testing.T) {
	// Given
	b := newBackoff()
	b.jitter = noJitter

	// When
	first := b.next()
	second := b.next()
	third := b.next()

	// Then
	assert.Equal(t, initialBackoff, first)
	assert.Equal(t, 2*initialBackoff, second)
	assert.Equal(t, 4*initialBackoff, third)
}

func TestBackoffIsCapped(t *testing.T) {
	b := newBackoff()
	b.jitter = noJitter
	for i := 0; i < 20; i++ {
		b.next()
	}
	assert.Equal(t, maxBackoff, b.next())
}

func TestBackoffJitterIsBounded(t *testing.T) {
	b := newBackoff()
	for i := 0; i < 100; i++ {
		b.reset()
		d := b.next()
		assert.GreaterOrEqual(t, d, initialBackoff)
		assert.Less(t, d, initialBackoff+maxJitter)
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff()
	assert.GreaterOrEqual(t, b.next(), initialBackoff)
	b.reset()
	assert.Equal(t, initialBackoff, b.current, "Reset should return to initial backoff")
}

func TestBackoffWaitStopsOnCancel(t *testing.T) {
	b := newBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, b.wait(ctx))
}
