package classify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmcascade/internal/booster"
	"svmcascade/internal/calib"
	"svmcascade/internal/feature"
	"svmcascade/internal/state"
)

type stubModel struct {
	fn func(x []float64) float64
}

func (m stubModel) PredictRaw(x []float64) (float64, error) { return m.fn(x), nil }
func (m stubModel) SupportCount() int                       { return 1 }
func (m stubModel) Save(string) error                       { return nil }

type countingSink struct {
	predictions int
	rejections  int
	scores      []float64
}

func (s *countingSink) PredictionsInc()                  { s.predictions++ }
func (s *countingSink) CascadeRejectionsInc()            { s.rejections++ }
func (s *countingSink) PredictionScoreObserve(v float64) { s.scores = append(s.scores, v) }

func trainedState() *state.State {
	return &state.State{
		Cascade:        booster.Cascade{{FeatureIdx: 1, Threshold: 10, RejectAbove: true}},
		FeatureSubset:  []int{0},
		Mean:           []float64{1, 0},
		Scale:          []float64{0.5, 1},
		SignCorrection: 1,
		Sigmoid:        calib.DefaultSigmoid(),
	}
}

func TestClassifyScoresSurvivor(t *testing.T) {
	t.Parallel()

	st := trainedState()
	model := stubModel{fn: func(x []float64) float64 { return x[0] }}
	c, err := New(st, model)
	require.NoError(t, err)
	sink := &countingSink{}
	c.SetMetrics(sink)

	// Feature 0 is 5: normalized (5-1)*0.5 = 2; boundary 0, sign +1.
	score, err := c.Classify(feature.Values{5, 0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, 1, sink.predictions)
	assert.Equal(t, 0, sink.rejections)
	assert.Equal(t, []float64{2}, sink.scores)
}

func TestClassifyAppliesSignAndBoundary(t *testing.T) {
	t.Parallel()

	st := trainedState()
	st.SignCorrection = -1
	st.Boundary = 0.5
	model := stubModel{fn: func(x []float64) float64 { return x[0] }}
	c, err := New(st, model)
	require.NoError(t, err)

	// Raw response 2; score = -1 * (2 - 0.5).
	score, err := c.Classify(feature.Values{5, 0})
	require.NoError(t, err)
	assert.Equal(t, -1.5, score)
}

func TestClassifyCascadeRejection(t *testing.T) {
	t.Parallel()

	engineCalled := false
	model := stubModel{fn: func(x []float64) float64 {
		engineCalled = true
		return 0
	}}
	c, err := New(trainedState(), model)
	require.NoError(t, err)
	sink := &countingSink{}
	c.SetMetrics(sink)

	// Feature 1 is 50, above the cascade threshold.
	score, err := c.Classify(feature.Values{5, 50})
	require.NoError(t, err)
	assert.Equal(t, RejectedScore, score)
	assert.False(t, engineCalled, "rejection must short-circuit the engine")
	assert.Equal(t, 1, sink.rejections)
	assert.Empty(t, sink.scores)
}

func TestClassifyBoostingOnly(t *testing.T) {
	t.Parallel()

	st := &state.State{
		Cascade:        booster.Cascade{{FeatureIdx: 0, Threshold: 1, RejectAbove: true}},
		SignCorrection: 0,
		Sigmoid:        calib.DefaultSigmoid(),
	}
	c, err := New(st, nil)
	require.NoError(t, err)

	score, err := c.Classify(feature.Values{0.5})
	require.NoError(t, err)
	assert.Equal(t, InlierScore, score)

	score, err = c.Classify(feature.Values{2})
	require.NoError(t, err)
	assert.Equal(t, RejectedScore, score)
}

func TestNewRejectsTrainedStateWithoutModel(t *testing.T) {
	t.Parallel()

	_, err := New(trainedState(), nil)
	assert.Error(t, err)
}

func TestProbability(t *testing.T) {
	t.Parallel()

	st := trainedState()
	st.Sigmoid = calib.SigmoidParams{ThreshLo: 0.2, ThreshHi: 0.8, Shift: 0, Scale: 1}
	model := stubModel{fn: func(x []float64) float64 { return x[0] }}
	c, err := New(st, model)
	require.NoError(t, err)

	prob, score, err := c.Probability(feature.Values{5, 0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, score)
	assert.GreaterOrEqual(t, prob, 0.2)
	assert.LessOrEqual(t, prob, 0.8)

	// A positive score maps above the midpoint.
	assert.Greater(t, prob, 0.5)
}

func TestProbabilityRefusesInvalidCalibration(t *testing.T) {
	t.Parallel()

	st := trainedState()
	st.Sigmoid = calib.SigmoidParams{ThreshLo: 0.9, ThreshHi: 0.1, Scale: 1}
	model := stubModel{fn: func(x []float64) float64 { return x[0] }}
	c, err := New(st, model)
	require.NoError(t, err)

	_, _, err = c.Probability(feature.Values{5, 0})
	assert.Error(t, err)
}

func TestClassifyPropagatesFeatureErrors(t *testing.T) {
	t.Parallel()

	model := stubModel{fn: func(x []float64) float64 { return 0 }}
	c, err := New(trainedState(), model)
	require.NoError(t, err)

	_, err = c.Classify(failingProvider{})
	assert.Error(t, err)
}

type failingProvider struct{}

func (failingProvider) Value(int) (float64, error) { return 0, fmt.Errorf("sensor offline") }
func (failingProvider) Dimension() int             { return 2 }
