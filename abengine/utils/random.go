package utils

import "math/rand/v2"

// Random is the source of the uniform draw used for weighted selection.
// *rand.Rand satisfies it, which lets tests pass a seeded generator.
type Random interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 {
	return rand.Float64()
}

// DefaultRandom draws from the math/rand/v2 top-level generator, which is
// safe for concurrent use.
var DefaultRandom Random = globalRandom{}
