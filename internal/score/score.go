// Package score computes validation scores from ground-truth labels and raw
// classifier responses, with class-balanced asymmetric weights. The sign
// convention of a raw decision function is arbitrary, so the weighted score
// also resolves the sign correction and returns it as an explicit value
// rather than threading it through output parameters.
package score

import "fmt"

// FeaturePenalty is the cross-validation penalty applied per selected
// feature, discouraging larger subsets independent of observed accuracy.
const FeaturePenalty = 0.003

// Class maps a raw response to the predicted class.
func Class(score float64) bool { return score > 0 }

// LabelValue is the engine-facing encoding of a class label.
func LabelValue(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

// ClassWeights holds per-class misclassification weights. Neg carries the
// sign convention of the engine (negative); only magnitudes enter scoring.
type ClassWeights struct {
	Neg float64
	Pos float64
}

// BalancedWeights picks weights so that pos*numPos matches |neg|*numNeg,
// scaled by the caller's relative cost for mislabelling negatives.
func BalancedWeights(numPos, numNeg int, negRelativeWeight float64) (ClassWeights, error) {
	if negRelativeWeight <= 0 {
		return ClassWeights{}, fmt.Errorf("negative relative weight must be positive, got %f", negRelativeWeight)
	}
	if numPos <= 0 || numNeg <= 0 {
		return ClassWeights{}, fmt.Errorf("need examples of both classes, got %d positive %d negative", numPos, numNeg)
	}
	balance := float64(numPos) / float64(numNeg)
	return ClassWeights{
		Neg: -negRelativeWeight * balance,
		Pos: 1,
	}, nil
}

func (w ClassWeights) abs(positive bool) float64 {
	v := w.Neg
	if positive {
		v = w.Pos
	}
	if v < 0 {
		return -v
	}
	return v
}

// Calibration is the sign convention resolved from a validation pass.
type Calibration struct {
	// Sign is +1 when the raw decision function already points positive
	// scores at the positive class, -1 when it is flipped.
	Sign float64
}

// WeightedSuccessRate computes the total weighted success rate over a
// validation set. When the weighted error exceeds half the total weight the
// decision function is oriented backwards: the sign flips and the rate is
// the complementary error fraction.
func WeightedSuccessRate(labels, responses []float64, w ClassWeights) (float64, Calibration) {
	var total, errScore float64
	for i := range labels {
		gt := Class(labels[i])
		weight := w.abs(gt)
		if gt != Class(responses[i]) {
			errScore += weight
		}
		total += weight
	}
	if total == 0 {
		return 0, Calibration{Sign: 1}
	}
	if errScore < 0.5*total {
		return (total - errScore) / total, Calibration{Sign: 1}
	}
	return errScore / total, Calibration{Sign: -1}
}

// BSR is the two-class balanced success rate: the average of per-class
// accuracies with each class weighted 0.5.
func BSR(labels, responses []float64, sign float64) float64 {
	bsr := 0.0
	for _, cls := range []bool{false, true} {
		var errors, examples float64
		for i := range labels {
			if Class(labels[i]) != cls {
				continue
			}
			examples++
			if Class(sign*responses[i]) != cls {
				errors++
			}
		}
		if examples > 0 {
			bsr += 0.5 * (examples - errors) / examples
		}
	}
	return bsr
}

// PrecisionRecall computes precision and recall of the positive class under
// the given sign correction.
func PrecisionRecall(labels, responses []float64, sign float64) (precision, recall float64) {
	var truePos, predictedPos, actualPos float64
	for i := range labels {
		gt := Class(labels[i])
		pred := Class(sign * responses[i])
		if pred {
			predictedPos++
			if gt {
				truePos++
			}
		}
		if gt {
			actualPos++
		}
	}
	if predictedPos > 0 {
		precision = truePos / predictedPos
	}
	if actualPos > 0 {
		recall = truePos / actualPos
	}
	return precision, recall
}
