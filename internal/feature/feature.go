// Package feature defines the feature-provider boundary and the labelled
// example collections consumed by training. A Provider computes individual
// feature values on demand; Vector wraps a Provider with a per-index cache so
// each value is computed at most once no matter how many cascade stages or
// subset selections touch it.
package feature

import (
	"fmt"
	"math"
)

// Provider is the capability needed from external feature computation.
// Implementations may be expensive per index; callers should go through a
// Vector so values are cached.
type Provider interface {
	// Value computes the feature at idx.
	Value(idx int) (float64, error)
	// Dimension is the total number of features available.
	Dimension() int
}

// Vector caches Provider values so each index is computed at most once.
// A Vector is not safe for concurrent use; concurrent classification calls
// must each use their own Vector.
type Vector struct {
	src    Provider
	vals   []float64
	filled []bool
}

// NewVector wraps a Provider with a lazy per-index cache.
func NewVector(src Provider) *Vector {
	d := src.Dimension()
	return &Vector{
		src:    src,
		vals:   make([]float64, d),
		filled: make([]bool, d),
	}
}

// Value returns the cached feature value at idx, computing it on first access.
func (v *Vector) Value(idx int) (float64, error) {
	if idx < 0 || idx >= len(v.vals) {
		return 0, fmt.Errorf("feature index %d out of range [0,%d)", idx, len(v.vals))
	}
	if !v.filled[idx] {
		val, err := v.src.Value(idx)
		if err != nil {
			return 0, fmt.Errorf("compute feature %d: %w", idx, err)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("feature %d is not finite: %f", idx, val)
		}
		v.vals[idx] = val
		v.filled[idx] = true
	}
	return v.vals[idx], nil
}

// Dimension returns the total feature count.
func (v *Vector) Dimension() int {
	return len(v.vals)
}

// Materialize computes every feature value and returns the full vector.
// Used at training time where all indices are needed anyway.
func (v *Vector) Materialize() ([]float64, error) {
	for i := range v.vals {
		if _, err := v.Value(i); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(v.vals))
	copy(out, v.vals)
	return out, nil
}

// Values is a fixed []float64 Provider, used when the whole vector is already
// known (replayed training examples, tests).
type Values []float64

func (f Values) Value(idx int) (float64, error) {
	if idx < 0 || idx >= len(f) {
		return 0, fmt.Errorf("feature index %d out of range [0,%d)", idx, len(f))
	}
	return f[idx], nil
}

func (f Values) Dimension() int { return len(f) }
