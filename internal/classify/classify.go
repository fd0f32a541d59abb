// Package classify composes the persisted state, boosting cascade, feature
// selector and engine model into the runtime classifier.
package classify

import (
	"fmt"

	"svmcascade/internal/calib"
	"svmcascade/internal/engine"
	"svmcascade/internal/feature"
	"svmcascade/internal/state"
	"svmcascade/internal/subset"
)

const (
	// RejectedScore is returned when the cascade rejects a candidate; the
	// engine is never consulted.
	RejectedScore = -1.0
	// InlierScore is returned by a boosting-only classifier: every point
	// surviving the cascade is an inlier by construction.
	InlierScore = 1.0
)

// MetricsSink is the narrow metrics surface the classifier reports to.
type MetricsSink interface {
	PredictionsInc()
	CascadeRejectionsInc()
	PredictionScoreObserve(float64)
}

type nopMetrics struct{}

func (nopMetrics) PredictionsInc()                {}
func (nopMetrics) CascadeRejectionsInc()          {}
func (nopMetrics) PredictionScoreObserve(float64) {}

// Classifier scores feature vectors and maps scores to calibrated
// probabilities. It is stateless across calls; concurrent calls are safe
// provided each uses its own feature Vector.
type Classifier struct {
	st      *state.State
	sel     *subset.Selector
	model   engine.Model
	metrics MetricsSink
}

// Load reads the persisted state for (dir, label), derives the boundary for
// the target precision, and loads the engine model when one exists.
func Load(dir, label string, targetPrecision float64, loader engine.Loader) (*Classifier, error) {
	st, err := state.Load(dir, label, targetPrecision)
	if err != nil {
		return nil, err
	}
	var model engine.Model
	if st.SignCorrection != 0 {
		if model, err = st.LoadModel(dir, label, loader); err != nil {
			return nil, err
		}
	}
	return New(st, model)
}

// New builds a classifier from already-loaded state. model may be nil only
// for a boosting-only state (sign correction 0).
func New(st *state.State, model engine.Model) (*Classifier, error) {
	if st.SignCorrection != 0 && model == nil {
		return nil, fmt.Errorf("state has sign correction %g but no engine model", st.SignCorrection)
	}
	sel, err := st.Selector()
	if err != nil {
		return nil, err
	}
	return &Classifier{st: st, sel: sel, model: model, metrics: nopMetrics{}}, nil
}

// SetMetrics wires a metrics sink; by default metrics are dropped.
func (c *Classifier) SetMetrics(m MetricsSink) {
	if m != nil {
		c.metrics = m
	}
}

// Classify scores a feature vector. Cascade rejection short-circuits to
// RejectedScore; a boosting-only classifier returns InlierScore for every
// survivor; otherwise the score is the sign-corrected raw engine response
// minus the precision-derived boundary.
func (c *Classifier) Classify(p feature.Provider) (float64, error) {
	c.metrics.PredictionsInc()

	keep, err := c.st.Cascade.Keep(p)
	if err != nil {
		return 0, err
	}
	if !keep {
		c.metrics.CascadeRejectionsInc()
		return RejectedScore, nil
	}
	if c.st.SignCorrection == 0 {
		return InlierScore, nil
	}

	reduced, err := c.sel.SelectAndNormalizeProvider(p)
	if err != nil {
		return 0, err
	}
	raw, err := c.model.PredictRaw(reduced)
	if err != nil {
		return 0, fmt.Errorf("engine predict: %w", err)
	}
	score := c.st.SignCorrection * (raw - c.st.Boundary)
	c.metrics.PredictionScoreObserve(score)
	return score, nil
}

// Probability maps a classification score through the sigmoid calibration.
// The calibration is validated first; serving from corrupt calibration is
// an error, never a silently wrong probability.
func (c *Classifier) Probability(p feature.Provider) (prob, score float64, err error) {
	if err := c.st.Sigmoid.Validate(); err != nil {
		return 0, 0, fmt.Errorf("refusing to serve: %w", err)
	}
	score, err = c.Classify(p)
	if err != nil {
		return 0, 0, err
	}
	prob = c.st.Sigmoid.Prob(score)
	if prob < 0 || prob > 1 {
		return 0, 0, fmt.Errorf("calibrated probability %f outside [0,1]", prob)
	}
	return prob, score, nil
}

// Sigmoid exposes the calibration for diagnostics.
func (c *Classifier) Sigmoid() calib.SigmoidParams { return c.st.Sigmoid }
