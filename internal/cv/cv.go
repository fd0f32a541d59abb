// Package cv scores one (feature subset, hyperparameter) configuration by
// k-fold cross-validation, and refits the winning configuration on all data
// for calibration. Folds are contiguous per-label blocks so every example is
// held out exactly once.
package cv

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"svmcascade/internal/calib"
	"svmcascade/internal/engine"
	"svmcascade/internal/feature"
	"svmcascade/internal/score"
	"svmcascade/internal/subset"
)

type partition struct {
	trainX [][]float64
	trainY []float64
	valX   [][]float64
	valY   []float64
}

// MetricsSink is the narrow metrics surface cross-validation reports to.
type MetricsSink interface {
	TrainFailuresInc()
}

type nopMetrics struct{}

func (nopMetrics) TrainFailuresInc() {}

// FoldSet holds the normalized reduced example matrix split into K folds.
// Built once per subset; every hyperparameter point shares it read-only.
type FoldSet struct {
	folds   []partition
	dims    int
	allX    [][]float64
	allY    []float64
	metrics MetricsSink
}

// New normalizes and reduces the labelled set through the selector, then
// builds K disjoint contiguous validation blocks per label: block i of a
// label with n examples covers index range [i*n/K, (i+1)*n/K).
func New(set *feature.Set, sel *subset.Selector, k int) (*FoldSet, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}

	reduced := map[bool][][]float64{}
	for _, lbl := range []bool{false, true} {
		examples := set.Examples(lbl)
		if len(examples) == 0 {
			return nil, fmt.Errorf("no examples with label %v", lbl)
		}
		rows := make([][]float64, 0, len(examples))
		for _, ex := range examples {
			row, err := sel.SelectAndNormalize(ex)
			if err != nil {
				return nil, err
			}
			if len(rows) > 0 && nearlyEqual(rows[0], row) {
				log.Warn().Bool("label", lbl).Msg("duplicate training vectors (this is usually ok)")
			}
			rows = append(rows, row)
		}
		logClassStats(lbl, rows)
		reduced[lbl] = rows
	}

	fs := &FoldSet{dims: len(sel.Subset()), metrics: nopMetrics{}}
	for _, lbl := range []bool{false, true} {
		for _, row := range reduced[lbl] {
			fs.allX = append(fs.allX, row)
			fs.allY = append(fs.allY, score.LabelValue(lbl))
		}
	}

	for i := 0; i < k; i++ {
		var p partition
		for _, lbl := range []bool{false, true} {
			rows := reduced[lbl]
			n := len(rows)
			start := n * i / k
			end := n * (i + 1) / k
			for j, row := range rows {
				if j >= start && j < end {
					p.valX = append(p.valX, row)
					p.valY = append(p.valY, score.LabelValue(lbl))
				} else {
					p.trainX = append(p.trainX, row)
					p.trainY = append(p.trainY, score.LabelValue(lbl))
				}
			}
		}
		if len(p.trainX) == 0 || len(p.valX) == 0 {
			return nil, fmt.Errorf("fold %d of %d is empty", i, k)
		}
		fs.folds = append(fs.folds, p)
	}
	return fs, nil
}

func nearlyEqual(a, b []float64) bool {
	sum := 0.0
	for i := range a {
		sum += a[i] - b[i]
	}
	return math.Abs(sum/float64(len(a))) < 1e-8
}

func logClassStats(positive bool, rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	dims := len(rows[0])
	mean := make([]float64, dims)
	for _, row := range rows {
		for i, v := range row {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(rows))
	}
	sd := make([]float64, dims)
	for _, row := range rows {
		for i, v := range row {
			d := v - mean[i]
			sd[i] += d * d
		}
	}
	for i := range sd {
		sd[i] = math.Sqrt(sd[i] / float64(len(rows)))
	}
	log.Debug().Bool("positive", positive).Floats64("mean", mean).Floats64("sd", sd).
		Msg("normalized subset class statistics")
}

// SetMetrics wires a metrics sink; by default metrics are dropped.
func (f *FoldSet) SetMetrics(m MetricsSink) {
	if m != nil {
		f.metrics = m
	}
}

// Dims returns the reduced dimensionality.
func (f *FoldSet) Dims() int { return f.dims }

// Folds returns the number of folds.
func (f *FoldSet) Folds() int { return len(f.folds) }

// validate scores a trained model on one validation partition; responses are
// raw decision values. An engine failure scores zero rather than aborting
// the search.
func validateFold(model engine.Model, p partition, w score.ClassWeights) float64 {
	responses := make([]float64, len(p.valX))
	for i, x := range p.valX {
		r, err := model.PredictRaw(x)
		if err != nil {
			log.Warn().Err(err).Msg("engine predict failed during validation")
			return 0
		}
		responses[i] = r
	}
	rate, _ := score.WeightedSuccessRate(p.valY, responses, w)
	return rate
}

// TrainAndValidate trains on each fold's held-in partition and scores on its
// held-out block, returning the mean weighted success rate minus the
// per-feature complexity penalty, plus the mean support count. Engine
// failures on degenerate hyperparameters score zero for that fold.
func (f *FoldSet) TrainAndValidate(trainer engine.Trainer, p engine.Params, w score.ClassWeights) (cvScore, avgSupport float64) {
	var sum, svs float64
	for _, fold := range f.folds {
		model, err := trainer.Train(fold.trainX, fold.trainY, p)
		if err != nil {
			f.metrics.TrainFailuresInc()
			log.Debug().Err(err).Float64("nu", p.Nu).Float64("gamma", p.Gamma).
				Msg("engine training failed, scoring 0")
			continue
		}
		sum += validateFold(model, fold, w)
		svs += float64(model.SupportCount())
	}
	n := float64(len(f.folds))
	penalty := score.FeaturePenalty * float64(f.dims)
	return sum/n - penalty, svs / n
}

// Result is everything the final refit produces for persistence.
type Result struct {
	Model       engine.Model
	Calibration score.Calibration
	Sigmoid     calib.SigmoidParams
	Lookup      calib.PRLookup
	Score       float64
	Summary     string
}

// TrainOnAll refits the given hyperparameters on the entire set (all folds
// merged), sweeps the decision boundary over [-1,1] in steps of 0.1 to build
// the precision lookup, resolves the sign correction, and fits the sigmoid
// calibration.
func (f *FoldSet) TrainOnAll(trainer engine.Trainer, p engine.Params, w score.ClassWeights, m calib.Minimiser) (*Result, error) {
	model, err := trainer.Train(f.allX, f.allY, p)
	if err != nil {
		return nil, fmt.Errorf("final refit failed: %w", err)
	}

	responses := make([]float64, len(f.allX))
	for i, x := range f.allX {
		r, perr := model.PredictRaw(x)
		if perr != nil {
			return nil, fmt.Errorf("final refit predict: %w", perr)
		}
		responses[i] = r
	}

	var lookup calib.PRLookup
	shifted := make([]float64, len(responses))
	for boundary := -1.0; boundary <= 1.0+1e-9; boundary += 0.1 {
		for i, r := range responses {
			shifted[i] = r - boundary
		}
		_, cal := score.WeightedSuccessRate(f.allY, shifted, w)
		precision, _ := score.PrecisionRecall(f.allY, shifted, cal.Sign)
		lookup.Add(boundary, precision)
	}

	rate, cal := score.WeightedSuccessRate(f.allY, responses, w)
	bsr := score.BSR(f.allY, responses, cal.Sign)
	precision, recall := score.PrecisionRecall(f.allY, responses, cal.Sign)

	sigmoid, err := calib.FitSigmoid(f.allY, responses, cal.Sign, calib.DefaultSigmoid(), m)
	if err != nil {
		return nil, err
	}

	summary := fmt.Sprintf(
		"Score on training set after retrain on all: %f\nBSR=%f precision=%f recall=%f\n",
		rate, bsr, precision, recall)

	log.Info().
		Float64("score", rate).
		Float64("bsr", bsr).
		Float64("precision", precision).
		Float64("recall", recall).
		Float64("sign", cal.Sign).
		Msg("final refit complete")

	return &Result{
		Model:       model,
		Calibration: cal,
		Sigmoid:     sigmoid,
		Lookup:      lookup,
		Score:       rate,
		Summary:     summary,
	}, nil
}
