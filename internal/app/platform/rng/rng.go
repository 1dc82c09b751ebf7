// Package rng provides an injectable, uniform [0,1) randomness source for
// formulas that must remain deterministic under test (§4.2). Any randomness
// that affects persisted state is drawn from this source inside the
// transaction, after its preconditions are validated.
package rng

import "math/rand/v2"

// Source returns a uniform float64 in [0,1).
type Source interface {
	Float64() float64
	// IntN returns a uniform integer in [0, n). Panics if n <= 0.
	IntN(n int) int
}

// System is the production Source backed by math/rand/v2's global generator,
// which is safe for concurrent use.
type System struct{}

func (System) Float64() float64 { return rand.Float64() }
func (System) IntN(n int) int   { return rand.IntN(n) }

// UniformInt returns a uniform integer in the inclusive range [lo, hi] using
// the given Source. If hi < lo the bounds are swapped.
func UniformInt(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := hi - lo + 1
	return lo + src.IntN(span)
}

// Sequence is a deterministic test Source that replays a fixed list of
// Float64 values (cycling once exhausted) and derives IntN from them.
type Sequence struct {
	values []float64
	idx    int
}

// NewSequence builds a Sequence that will replay values in order.
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	v := s.values[s.idx%len(s.values)]
	s.idx++
	return v
}

func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("rng: IntN called with n <= 0")
	}
	f := s.Float64()
	i := int(f * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
