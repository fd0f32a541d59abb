// Package engine is the boundary to the underlying binary classifier. The
// training and calibration pipeline only ever sees this contract; the
// concrete implementation wraps the libsvm port.
package engine

// Params configures one training run of the engine.
type Params struct {
	// Nu is the NU_SVC regularization parameter.
	Nu float64
	// Gamma is the RBF kernel bandwidth; gamma <= 0 selects a linear kernel.
	Gamma float64
	// NegWeight and PosWeight are the per-class misclassification weights.
	NegWeight float64
	PosWeight float64
}

// Model is a trained classifier.
type Model interface {
	// PredictRaw returns the raw decision value for a normalized reduced
	// feature vector.
	PredictRaw(x []float64) (float64, error)
	// SupportCount reports the model complexity (number of support
	// vectors).
	SupportCount() int
	// Save serializes the model to path.
	Save(path string) error
}

// Trainer trains models. Implementations must return an error rather than
// panic on degenerate parameter points; callers treat a failed training run
// as a zero-score candidate and move on.
type Trainer interface {
	Train(features [][]float64, labels []float64, p Params) (Model, error)
}

// Loader restores a serialized Model from disk.
type Loader func(path string) (Model, error)
