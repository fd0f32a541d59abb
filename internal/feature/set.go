package feature

import (
	"fmt"
	"sync"
)

// Set is the append-only labelled example store filled during data collection.
// Many producers may call Add concurrently; one mutex guards the two
// label-keyed collections and no other shared mutable state exists during
// collection. Filtering never mutates a Set in place: Filter returns a new
// one.
type Set struct {
	mu   sync.Mutex
	neg  [][]float64
	pos  [][]float64
	dims int
}

// NewSet returns an empty example store.
func NewSet() *Set {
	return &Set{}
}

// Add appends a fully-computed feature vector under its label. The first
// vector fixes the dimensionality; later vectors must match it.
func (s *Set) Add(vals []float64, positive bool) error {
	if len(vals) == 0 {
		return fmt.Errorf("empty feature vector")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 {
		s.dims = len(vals)
	} else if len(vals) != s.dims {
		return fmt.Errorf("feature vector has %d values, want %d", len(vals), s.dims)
	}

	own := make([]float64, len(vals))
	copy(own, vals)
	if positive {
		s.pos = append(s.pos, own)
	} else {
		s.neg = append(s.neg, own)
	}
	return nil
}

// Examples returns the stored vectors for one label. The returned slice is a
// read-only view; training runs single-threaded after collection ends.
func (s *Set) Examples(positive bool) [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if positive {
		return s.pos
	}
	return s.neg
}

// Count returns the number of examples stored under one label.
func (s *Set) Count(positive bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if positive {
		return len(s.pos)
	}
	return len(s.neg)
}

// Dims returns the feature dimensionality, or 0 if the set is empty.
func (s *Set) Dims() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims
}

// Filter returns a new Set holding only the examples keep accepts. The
// receiver is left untouched.
func (s *Set) Filter(keep func(vals []float64) bool) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &Set{dims: s.dims}
	for _, v := range s.neg {
		if keep(v) {
			out.neg = append(out.neg, v)
		}
	}
	for _, v := range s.pos {
		if keep(v) {
			out.pos = append(out.pos, v)
		}
	}
	return out
}
