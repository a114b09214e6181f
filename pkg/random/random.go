// Package random provides the seeded randomness source for trial timing.
// All trial randomness flows through one Source so a fixed seed reproduces
// an entire session.
package random

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// itiDecay is the decay constant of the truncated exponential used for
// inter-trial intervals.
const itiDecay = 0.001

// Source is a seeded PRNG safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	rng  *rand.Rand
	seed int64
}

// New returns a Source seeded with seed. A zero seed derives one from the
// clock, for non-reproducible sessions.
func New(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the effective seed, for logging and session metadata.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Bool returns true or false with equal probability.
func (s *Source) Bool() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(2) == 1
}

// IntBetween returns a uniform integer in [min, max], both ends inclusive.
// Returns min when the range is empty.
func (s *Source) IntBetween(min, max int64) int64 {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Int63n(max-min+1)
}

// ITI draws an inter-trial interval in milliseconds from a truncated
// exponential over [min, max]. Short intervals are more likely than long
// ones, which keeps animals from predicting trial onset while bounding
// the wait.
func (s *Source) ITI(min, max int64) int64 {
	if max <= min {
		return min
	}

	u := s.Float64()
	normalization := 1 - math.Exp(-itiDecay*float64(max-min))
	value := float64(min) - math.Log(1-u*normalization)/itiDecay

	iti := int64(value)
	if iti < min {
		iti = min
	}
	if iti > max {
		iti = max
	}
	return iti
}
