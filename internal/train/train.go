// Package train orchestrates a full training run: example collection,
// boosting cascade construction, normalization, the joint hyperparameter and
// feature-subset search, final refit with calibration, and persistence of
// the resulting classifier state.
package train

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"svmcascade/internal/booster"
	"svmcascade/internal/calib"
	"svmcascade/internal/cfg"
	"svmcascade/internal/cv"
	"svmcascade/internal/engine"
	"svmcascade/internal/feature"
	"svmcascade/internal/score"
	"svmcascade/internal/search"
	"svmcascade/internal/state"
	"svmcascade/internal/store"
	"svmcascade/internal/subset"
)

// ErrInsufficientData is returned when either class has fewer than
// MinExamplesPerClass examples; no state is persisted.
var ErrInsufficientData = errors.New("insufficient training data")

// MinExamplesPerClass is the minimum examples each class needs before a
// training run is worth starting.
const MinExamplesPerClass = 20

// MetricsSink is the narrow metrics surface training reports to. The
// evaluation and failure counters are forwarded into the subset search and
// are incremented from concurrent jobs.
type MetricsSink interface {
	ExamplesStoredInc()
	BoosterStagesSet(float64)
	EvaluationsInc()
	TrainFailuresInc()
}

type nopMetrics struct{}

func (nopMetrics) ExamplesStoredInc()       {}
func (nopMetrics) BoosterStagesSet(float64) {}
func (nopMetrics) EvaluationsInc()          {}
func (nopMetrics) TrainFailuresInc()        {}

// Trainer accumulates labelled examples and runs the training pipeline.
// AddExample is safe for concurrent producers; Train must only be called
// once collection has finished.
type Trainer struct {
	settings  cfg.Settings
	trainer   engine.Trainer
	minimiser calib.Minimiser
	examples  *feature.Set
	store     *store.Store
	metrics   MetricsSink

	mu      sync.Mutex
	summary strings.Builder
}

// New builds a Trainer. store may be nil when no example persistence is
// configured.
func New(settings cfg.Settings, trainer engine.Trainer, minimiser calib.Minimiser, st *store.Store) *Trainer {
	return &Trainer{
		settings:  settings,
		trainer:   trainer,
		minimiser: minimiser,
		examples:  feature.NewSet(),
		store:     st,
		metrics:   nopMetrics{},
	}
}

// SetMetrics wires a metrics sink; by default metrics are dropped.
func (t *Trainer) SetMetrics(m MetricsSink) {
	if m != nil {
		t.metrics = m
	}
}

// AddExample computes the whole feature vector and appends it under its
// label, recording it to the example store when one is configured.
func (t *Trainer) AddExample(p feature.Provider, positive bool) error {
	vec, err := feature.NewVector(p).Materialize()
	if err != nil {
		return fmt.Errorf("materialize training feature: %w", err)
	}
	if err := t.examples.Add(vec, positive); err != nil {
		return err
	}
	if t.store != nil {
		if err := t.store.Append(t.settings.Label, store.Example{Label: positive, Values: vec}); err != nil {
			return fmt.Errorf("persist training example: %w", err)
		}
		t.metrics.ExamplesStoredInc()
	}
	return nil
}

// AddValues appends an already-computed feature vector (replayed examples).
func (t *Trainer) AddValues(vals []float64, positive bool) error {
	return t.examples.Add(vals, positive)
}

func (t *Trainer) note(format string, args ...any) {
	t.mu.Lock()
	fmt.Fprintf(&t.summary, format, args...)
	t.mu.Unlock()
}

func (t *Trainer) boosterBounds() booster.Bounds {
	return booster.Bounds{
		MaxPositiveRatio:    t.settings.BoosterMaxPositiveRatio,
		MinNegativeFraction: t.settings.BoosterMinNegativeFraction,
		MinNegativeCount:    t.settings.BoosterMinNegativeCount,
	}
}

// Train runs the whole pipeline and persists the resulting state. The
// returned state is the one written to disk.
func (t *Trainer) Train() (*state.State, error) {
	if err := os.MkdirAll(t.settings.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	numPos, numNeg := t.examples.Count(true), t.examples.Count(false)
	t.note("Training from %d positive and %d negative examples\n", numPos, numNeg)
	log.Info().Int("positive", numPos).Int("negative", numNeg).Msg("starting training")

	if numPos < MinExamplesPerClass || numNeg < MinExamplesPerClass {
		return nil, fmt.Errorf("%w: %d positive, %d negative (need %d each)",
			ErrInsufficientData, numPos, numNeg, MinExamplesPerClass)
	}

	working := t.examples
	var cascade booster.Cascade
	if t.settings.UseBoosting {
		var err error
		cascade, working, err = booster.Build(working, t.boosterBounds())
		if err != nil {
			return nil, err
		}
	}
	t.metrics.BoosterStagesSet(float64(len(cascade)))

	numPos, numNeg = working.Count(true), working.Count(false)
	t.note("%d positive and %d negative examples after boosting\n", numPos, numNeg)

	if numPos == 0 || numNeg == 0 {
		log.Info().Msg("boosting left no training data, saving boosting-only classifier")
		return t.saveBoostingOnly(cascade)
	}

	weights, err := score.BalancedWeights(numPos, numNeg, t.settings.NegRelativeWeight)
	if err != nil {
		return nil, err
	}

	sel := &subset.Selector{}
	if err := sel.FindNormalizingCoeffs(working); err != nil {
		return nil, err
	}

	mode, err := search.ParseMode(t.settings.FeatureSelection)
	if err != nil {
		return nil, err
	}
	searcher := search.New(working, sel, t.trainer, weights, search.Options{
		Dir:               t.settings.OutputDir,
		Label:             t.settings.Label,
		Mode:              mode,
		Folds:             t.settings.Folds,
		Workers:           t.settings.Workers,
		FilterHyperparams: t.settings.FilterHyperparams,
	})
	searcher.SetMetrics(t.metrics)
	winner, err := searcher.Run()
	if err != nil {
		return nil, err
	}
	t.note("Best subset has %d features, CV score %f\n", len(winner.Subset), winner.Point.CVScore)

	sel.SetSubset(winner.Subset)
	foldSet, err := cv.New(working, sel, t.settings.Folds)
	if err != nil {
		return nil, err
	}
	result, err := foldSet.TrainOnAll(t.trainer, winner.Point.Params, weights, t.minimiser)
	if err != nil {
		return nil, err
	}
	t.note("%s", result.Summary)

	if err := t.writeBoundaryGrids(winner.Point, result.Model, len(winner.Subset)); err != nil {
		log.Warn().Err(err).Msg("could not write decision boundary grids")
	}

	st := &state.State{
		Cascade:        cascade,
		FeatureSubset:  winner.Subset,
		Mean:           sel.Mean(),
		Scale:          sel.Scale(),
		SignCorrection: result.Calibration.Sign,
		Lookup:         result.Lookup,
		Sigmoid:        result.Sigmoid,
		Summary:        t.summary.String(),
	}
	if err := state.Save(t.settings.OutputDir, t.settings.Label, st, result.Model); err != nil {
		return nil, err
	}
	return st, nil
}

// saveBoostingOnly persists a cascade-only classifier: sign correction 0,
// no engine model, default sigmoid.
func (t *Trainer) saveBoostingOnly(cascade booster.Cascade) (*state.State, error) {
	st := &state.State{
		Cascade:        cascade,
		SignCorrection: 0,
		Sigmoid:        calib.DefaultSigmoid(),
		Summary:        t.summary.String(),
	}
	if err := state.Save(t.settings.OutputDir, t.settings.Label, st, nil); err != nil {
		return nil, err
	}
	return st, nil
}

// writeBoundaryGrids sweeps each adjacent feature pair of the reduced space
// over [-2,2] and records the raw engine response, for decision-boundary
// plots.
func (t *Trainer) writeBoundaryGrids(p search.Point, model engine.Model, dims int) error {
	dir := filepath.Join(t.settings.OutputDir, "boundaries")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i := 0; i+1 < dims; i++ {
		name := fmt.Sprintf("Nu=%gGamma=%gi=%dj=%d.tsv", p.Params.Nu, p.Params.Gamma, i, i+1)
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		probe := make([]float64, dims)
		for x := -2.0; x <= 2.0+1e-9; x += 0.04 {
			for y := -2.0; y <= 2.0+1e-9; y += 0.04 {
				for k := range probe {
					probe[k] = 0
				}
				probe[i], probe[i+1] = x, y
				resp, err := model.PredictRaw(probe)
				if err != nil {
					resp = math.NaN()
				}
				fmt.Fprintf(f, "%g\t%g\t%g\n", x, y, resp)
			}
		}
		f.Close()
	}
	return nil
}
