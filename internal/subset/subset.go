// Package subset holds the selected feature indices and the per-feature
// normalization coefficients, and projects full feature vectors into the
// normalized reduced vectors the classifier engine trains on.
package subset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"svmcascade/internal/feature"
)

// Selector projects a full feature vector onto a chosen subset, normalizing
// each selected value as (value - mean) * scale. Coefficients are estimated
// once over the whole (cascade-filtered) feature space and then reused across
// every subset tried during search; SetSubset deliberately does not
// recompute them.
type Selector struct {
	indices []int
	mean    []float64
	scale   []float64
}

// New builds a Selector from persisted state.
func New(indices []int, mean, scale []float64) (*Selector, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= len(mean) || idx >= len(scale) {
			return nil, fmt.Errorf("feature index %d has no normalization coefficients", idx)
		}
	}
	return &Selector{indices: indices, mean: mean, scale: scale}, nil
}

// FindNormalizingCoeffs estimates mean and 1/sigma for every feature index
// over both label classes combined. Must run exactly once, after cascade
// filtering, before any subset is scored. A zero standard deviation rounds
// to scale 1.
func (s *Selector) FindNormalizingCoeffs(set *feature.Set) error {
	dims := set.Dims()
	if dims == 0 {
		return fmt.Errorf("no examples to normalize")
	}
	s.mean = make([]float64, dims)
	s.scale = make([]float64, dims)

	vals := make([]float64, 0, set.Count(false)+set.Count(true))
	for idx := 0; idx < dims; idx++ {
		vals = vals[:0]
		for _, lbl := range []bool{false, true} {
			for _, ex := range set.Examples(lbl) {
				vals = append(vals, ex[idx])
			}
		}
		mean, sd := stat.MeanStdDev(vals, nil)
		scale := 1.0
		if sd > 0 {
			scale = 1.0 / sd
		}
		if math.IsNaN(scale) || math.IsInf(scale, 0) || scale == 0 {
			return fmt.Errorf("feature %d: bad normalizing scale %f", idx, scale)
		}
		s.mean[idx] = mean
		s.scale[idx] = scale
	}
	return nil
}

// SetSubset replaces the active subset without touching the coefficients.
func (s *Selector) SetSubset(indices []int) {
	s.indices = indices
}

// Subset returns the active subset in projection order.
func (s *Selector) Subset() []int { return s.indices }

// Mean returns the per-index normalizing means.
func (s *Selector) Mean() []float64 { return s.mean }

// Scale returns the per-index normalizing scales (1/sigma).
func (s *Selector) Scale() []float64 { return s.scale }

// SelectAndNormalize projects a full vector onto the subset in subset order.
func (s *Selector) SelectAndNormalize(vals []float64) ([]float64, error) {
	if len(s.indices) == 0 {
		return nil, fmt.Errorf("empty feature subset")
	}
	out := make([]float64, len(s.indices))
	for i, idx := range s.indices {
		if idx < 0 || idx >= len(vals) {
			return nil, fmt.Errorf("feature index %d out of range [0,%d)", idx, len(vals))
		}
		out[i] = (vals[idx] - s.mean[idx]) * s.scale[idx]
	}
	return out, nil
}

// SelectAndNormalizeProvider projects a Provider, computing only the selected
// indices.
func (s *Selector) SelectAndNormalizeProvider(p feature.Provider) ([]float64, error) {
	if len(s.indices) == 0 {
		return nil, fmt.Errorf("empty feature subset")
	}
	out := make([]float64, len(s.indices))
	for i, idx := range s.indices {
		val, err := p.Value(idx)
		if err != nil {
			return nil, err
		}
		out[i] = (val - s.mean[idx]) * s.scale[idx]
	}
	return out, nil
}
