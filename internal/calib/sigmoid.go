// Package calib maps raw classifier responses to calibrated probabilities
// and decision boundaries. It owns the sigmoid probability mapping, its
// least-squares fit, and the precision/boundary lookup used to pick an
// operating point by target precision after training.
package calib

import (
	"fmt"
	"math"
)

// SigmoidParams is the bounded logistic mapping from raw response to
// probability: lo + (hi-lo) * logistic(scale * (response - shift)).
type SigmoidParams struct {
	ThreshLo float64 `yaml:"sigmoidThreshLo"`
	ThreshHi float64 `yaml:"sigmoidThreshHi"`
	Shift    float64 `yaml:"sigmoidShift"`
	Scale    float64 `yaml:"sigmoidScale"`
}

// DefaultSigmoid is the seed used before fitting.
func DefaultSigmoid() SigmoidParams {
	return SigmoidParams{ThreshLo: 0.1, ThreshHi: 0.9, Shift: 0, Scale: 1}
}

// Validate rejects calibration a classifier must never serve from.
func (s SigmoidParams) Validate() error {
	if s.ThreshLo < 0 || s.ThreshLo > 1 {
		return fmt.Errorf("sigmoid threshold lo %f outside [0,1]", s.ThreshLo)
	}
	if s.ThreshHi < 0 || s.ThreshHi > 1 {
		return fmt.Errorf("sigmoid threshold hi %f outside [0,1]", s.ThreshHi)
	}
	if s.ThreshLo >= s.ThreshHi {
		return fmt.Errorf("sigmoid thresholds out of order: lo %f >= hi %f", s.ThreshLo, s.ThreshHi)
	}
	if s.Scale <= 0 {
		return fmt.Errorf("sigmoid scale %f must be positive", s.Scale)
	}
	return nil
}

// Prob maps a (sign-corrected, boundary-shifted) response to a probability
// in [ThreshLo, ThreshHi].
func (s SigmoidParams) Prob(response float64) float64 {
	return s.ThreshLo + (s.ThreshHi-s.ThreshLo)*LogisticSigmoid(s.Scale*(response-s.Shift))
}

// LogisticSigmoid is the standard logistic function, range (0,1).
func LogisticSigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// LogisticSigmoidInv inverts the logistic function, clipping its argument
// away from 0 and 1 so the seed thresholds stay finite.
func LogisticSigmoidInv(x float64) (float64, error) {
	if x < 0 || x > 1 {
		return 0, fmt.Errorf("value %f is not a probability", x)
	}
	clipped := math.Min(math.Max(x, 0.0001), 0.9999)
	return -math.Log(1.0/clipped - 1), nil
}
