package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancedWeights(t *testing.T) {
	t.Parallel()

	w, err := BalancedWeights(100, 400, 1)
	require.NoError(t, err)
	assert.Equal(t, -0.25, w.Neg)
	assert.Equal(t, 1.0, w.Pos)

	// Total weight per class balances out.
	assert.InDelta(t, 100*w.Pos, 400*(-w.Neg), 1e-12)

	w, err = BalancedWeights(100, 400, 2)
	require.NoError(t, err)
	assert.Equal(t, -0.5, w.Neg, "relative weight scales the negative side")
}

func TestBalancedWeightsErrors(t *testing.T) {
	t.Parallel()

	_, err := BalancedWeights(0, 10, 1)
	assert.Error(t, err)
	_, err = BalancedWeights(10, 0, 1)
	assert.Error(t, err)
	_, err = BalancedWeights(10, 10, 0)
	assert.Error(t, err)
	_, err = BalancedWeights(10, 10, -1)
	assert.Error(t, err)
}

func TestWeightedSuccessRate(t *testing.T) {
	t.Parallel()

	labels := []float64{1, 1, -1, -1}
	w := ClassWeights{Neg: -1, Pos: 1}

	// Perfect predictions.
	rate, cal := WeightedSuccessRate(labels, []float64{2, 0.5, -1, -3}, w)
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, 1.0, cal.Sign)

	// One of four wrong.
	rate, cal = WeightedSuccessRate(labels, []float64{2, -0.5, -1, -3}, w)
	assert.Equal(t, 0.75, rate)
	assert.Equal(t, 1.0, cal.Sign)

	// Everything inverted: sign flips and the rate is the error fraction.
	rate, cal = WeightedSuccessRate(labels, []float64{-2, -0.5, 1, 3}, w)
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, -1.0, cal.Sign)
}

func TestWeightedSuccessRateBounds(t *testing.T) {
	t.Parallel()

	labels := []float64{1, 1, 1, -1, -1}
	responses := []float64{1, -1, 1, 1, -1}
	for _, w := range []ClassWeights{
		{Neg: -1, Pos: 1},
		{Neg: -0.01, Pos: 1},
		{Neg: -5, Pos: 0.2},
	} {
		rate, cal := WeightedSuccessRate(labels, responses, w)
		assert.GreaterOrEqual(t, rate, 0.0)
		assert.LessOrEqual(t, rate, 1.0)
		assert.Contains(t, []float64{1, -1}, cal.Sign)
		// A flipped orientation always reports at least coin-flip quality.
		assert.GreaterOrEqual(t, rate, 0.5)
	}
}

func TestWeightedSuccessRateRespectsWeights(t *testing.T) {
	t.Parallel()

	// One positive wrong out of one positive and three negatives right:
	// with Pos weight 3 the error share is 3/(3+3*1) = 0.5 -> flipped.
	labels := []float64{1, -1, -1, -1}
	responses := []float64{-1, -1, -1, -1}
	rate, cal := WeightedSuccessRate(labels, responses, ClassWeights{Neg: -1, Pos: 3})
	assert.Equal(t, -1.0, cal.Sign)
	assert.Equal(t, 0.5, rate)

	// With a light positive weight the same mistakes stay oriented.
	rate, cal = WeightedSuccessRate(labels, responses, ClassWeights{Neg: -1, Pos: 0.5})
	assert.Equal(t, 1.0, cal.Sign)
	assert.InDelta(t, 3.0/3.5, rate, 1e-12)
}

func TestBSR(t *testing.T) {
	t.Parallel()

	labels := []float64{1, 1, -1, -1, -1, -1}
	// Both positives right, two of four negatives right.
	responses := []float64{1, 1, 1, 1, -1, -1}
	assert.InDelta(t, 0.5*1+0.5*0.5, BSR(labels, responses, 1), 1e-12)

	// Sign correction applies before classification.
	assert.InDelta(t, 0.5*0+0.5*0.5, BSR(labels, responses, -1), 1e-12)
}

func TestPrecisionRecall(t *testing.T) {
	t.Parallel()

	labels := []float64{1, 1, 1, -1, -1}
	responses := []float64{1, 1, -1, 1, -1}

	precision, recall := PrecisionRecall(labels, responses, 1)
	assert.InDelta(t, 2.0/3.0, precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, recall, 1e-12)

	// No predicted positives: precision degrades to 0 instead of NaN.
	precision, recall = PrecisionRecall(labels, []float64{-1, -1, -1, -1, -1}, 1)
	assert.Equal(t, 0.0, precision)
	assert.Equal(t, 0.0, recall)
}

func TestClassAndLabelValue(t *testing.T) {
	t.Parallel()

	assert.True(t, Class(0.001))
	assert.False(t, Class(0), "zero is the negative side")
	assert.False(t, Class(-1))
	assert.Equal(t, 1.0, LabelValue(true))
	assert.Equal(t, -1.0, LabelValue(false))
}
