// Package booster builds and applies the rule-based boosting cascade that
// rejects near-certain negatives before the classifier engine runs. Each
// stage is a single-feature threshold rule; stages are selected greedily and
// applied in order, and a candidate is rejected as soon as any stage rejects
// it.
package booster

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"svmcascade/internal/feature"
)

// State is one threshold rule of the cascade.
type State struct {
	FeatureIdx  int     `yaml:"featureIdx"`
	Threshold   float64 `yaml:"threshold"`
	RejectAbove bool    `yaml:"rejectAbove"`
}

// Keep reports whether a feature value survives this stage.
func (st State) Keep(val float64) bool {
	if st.RejectAbove {
		return val < st.Threshold
	}
	return val > st.Threshold
}

// KeepValues applies the rule to a full feature vector.
func (st State) KeepValues(vals []float64) bool {
	return st.Keep(vals[st.FeatureIdx])
}

// Cascade is an ordered sequence of stages.
type Cascade []State

// Keep runs the cascade against a Provider, computing only the feature
// indices the stages inspect.
func (c Cascade) Keep(p feature.Provider) (bool, error) {
	for _, st := range c {
		val, err := p.Value(st.FeatureIdx)
		if err != nil {
			return false, err
		}
		if !st.Keep(val) {
			return false, nil
		}
	}
	return true, nil
}

// KeepValues runs the cascade against a fully-computed vector.
func (c Cascade) KeepValues(vals []float64) bool {
	for _, st := range c {
		if !st.KeepValues(vals) {
			return false
		}
	}
	return true
}

// Bounds is the acceptance criterion for a candidate stage. A rule is only
// worth keeping if it removes a decent share of the negatives while costing
// almost no positives. The defaults are inherited heuristics; they are
// configuration rather than constants because nobody has derived principled
// values for them.
type Bounds struct {
	// MaxPositiveRatio caps positives lost per negative removed while
	// walking the sorted feature values.
	MaxPositiveRatio float64
	// MinNegativeFraction is the minimum share of current negatives a stage
	// must remove.
	MinNegativeFraction float64
	// MinNegativeCount is the minimum absolute number of negatives a stage
	// must remove.
	MinNegativeCount int
}

// DefaultBounds returns the standard acceptance bounds.
func DefaultBounds() Bounds {
	return Bounds{
		MaxPositiveRatio:    0.0005,
		MinNegativeFraction: 0.1,
		MinNegativeCount:    150,
	}
}

type candidate struct {
	state    State
	fraction float64 // share of current negatives removed
	removed  float64
}

type oneFeatureVal struct {
	val float64
	pos bool
}

// findCandidate scans one (feature, polarity) pair for the best threshold.
// Examples are sorted in the rejection direction; the recorded boundary falls
// immediately after the last position where positives seen stay under
// MaxPositiveRatio of negatives seen, and strictly between two distinct
// values.
func findCandidate(set *feature.Set, idx int, rejectAbove bool, b Bounds) (candidate, bool) {
	sorted := make([]oneFeatureVal, 0, set.Count(false)+set.Count(true))
	for _, lbl := range []bool{false, true} {
		for _, vals := range set.Examples(lbl) {
			sorted = append(sorted, oneFeatureVal{val: vals[idx], pos: lbl})
		}
	}
	if rejectAbove {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
	} else {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].val < sorted[j].val })
	}

	var pos, neg float64
	thresh := 0.0
	removed := -1.0
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].pos {
			pos++
		} else {
			neg++
		}
		// Force the split to fall strictly between two distinct values.
		if pos < b.MaxPositiveRatio*neg && sorted[i].val != sorted[i+1].val {
			thresh = 0.5 * (sorted[i].val + sorted[i+1].val)
			removed = neg
		}
	}

	numNeg := float64(set.Count(false))
	fraction := removed / numNeg
	if fraction < b.MinNegativeFraction || removed < float64(b.MinNegativeCount) {
		return candidate{}, false
	}
	return candidate{
		state:    State{FeatureIdx: idx, Threshold: thresh, RejectAbove: rejectAbove},
		fraction: fraction,
		removed:  removed,
	}, true
}

// Step finds the single best stage for the current example set and returns it
// together with the filtered set. ok is false when no candidate meets the
// acceptance bounds, which terminates cascade construction. The input set is
// never mutated.
func Step(set *feature.Set, b Bounds) (State, *feature.Set, bool, error) {
	best := candidate{}
	found := false
	for _, rejectAbove := range []bool{false, true} {
		for idx := 0; idx < set.Dims(); idx++ {
			if cand, ok := findCandidate(set, idx, rejectAbove, b); ok && cand.fraction > best.fraction {
				best = cand
				found = true
			}
		}
	}
	if !found {
		return State{}, set, false, nil
	}

	negBefore := set.Count(false)
	filtered := set.Filter(best.state.KeepValues)
	if filtered.Count(false) >= negBefore {
		return State{}, set, false, fmt.Errorf("boosting stage on feature %d removed no negatives", best.state.FeatureIdx)
	}

	log.Info().
		Int("feature", best.state.FeatureIdx).
		Float64("threshold", best.state.Threshold).
		Bool("rejectAbove", best.state.RejectAbove).
		Float64("negFractionRemoved", best.fraction).
		Msg("selected boosting stage")

	return best.state, filtered, true, nil
}

// Build greedily constructs the whole cascade, filtering the example set
// after each accepted stage. Returns the cascade and the surviving examples.
func Build(set *feature.Set, b Bounds) (Cascade, *feature.Set, error) {
	var cascade Cascade
	for {
		st, filtered, ok, err := Step(set, b)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return cascade, set, nil
		}
		cascade = append(cascade, st)
		set = filtered
	}
}
