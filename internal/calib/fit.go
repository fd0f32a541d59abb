package calib

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"

	"svmcascade/internal/score"
)

// Minimiser is the nonlinear least-squares boundary: it minimises the sum of
// squared residuals of fn starting from x0 and returns the fitted parameters.
type Minimiser interface {
	Minimise(fn func(params []float64) []float64, x0 []float64) ([]float64, error)
}

// NelderMead minimises the squared-residual objective with gonum's
// derivative-free simplex method.
type NelderMead struct{}

// Minimise implements Minimiser.
func (NelderMead) Minimise(fn func(params []float64) []float64, x0 []float64) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sum := 0.0
			for _, r := range fn(x) {
				sum += r * r
			}
			return sum
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("sigmoid fit failed: %w", err)
	}
	return result.X, nil
}

func paramsFromVector(x []float64) SigmoidParams {
	return SigmoidParams{
		Scale:    x[0],
		Shift:    x[1],
		ThreshHi: LogisticSigmoid(x[2]),
		ThreshLo: LogisticSigmoid(x[3]),
	}
}

// FitSigmoid fits the probability mapping by least squares over a labelled
// set of raw responses: the residual of each example is the mapped
// probability of its sign-corrected response minus its 0/1 ground truth.
// The two thresholds are optimized through the logistic function so the fit
// cannot push them outside (0,1); the result is still validated because a
// corrupt calibration must not be persisted.
func FitSigmoid(labels, responses []float64, sign float64, init SigmoidParams, m Minimiser) (SigmoidParams, error) {
	hi, err := LogisticSigmoidInv(init.ThreshHi)
	if err != nil {
		return SigmoidParams{}, err
	}
	lo, err := LogisticSigmoidInv(init.ThreshLo)
	if err != nil {
		return SigmoidParams{}, err
	}
	x0 := []float64{init.Scale, init.Shift, hi, lo}

	residuals := func(x []float64) []float64 {
		p := paramsFromVector(x)
		resids := make([]float64, len(labels))
		for i := range labels {
			target := 0.0
			if score.Class(labels[i]) {
				target = 1
			}
			resids[i] = p.Prob(sign*responses[i]) - target
		}
		return resids
	}

	fitted, err := m.Minimise(residuals, x0)
	if err != nil {
		return SigmoidParams{}, err
	}
	params := paramsFromVector(fitted)
	if err := params.Validate(); err != nil {
		return SigmoidParams{}, fmt.Errorf("fitted sigmoid invalid: %w", err)
	}
	return params, nil
}
