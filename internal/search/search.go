package search

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"svmcascade/internal/cv"
	"svmcascade/internal/engine"
	"svmcascade/internal/feature"
	"svmcascade/internal/score"
	"svmcascade/internal/subset"
)

// Options configures a search run.
type Options struct {
	Dir     string
	Label   string
	Mode    Mode
	Folds   int
	Workers int
	// FilterHyperparams prunes the grid to the best Folds points once the
	// subset has grown past a third of the dimensionality; the optimal
	// hyperparameter region is assumed stable across subset sizes.
	FilterHyperparams bool
}

// Winner is the best (subset, hyperparameter) pair found.
type Winner struct {
	Subset []int
	Point  Point
}

// MetricsSink is the narrow metrics surface the search reports to. Its
// methods are called from concurrent evaluation jobs and must be safe for
// concurrent use.
type MetricsSink interface {
	EvaluationsInc()
	TrainFailuresInc()
}

type nopMetrics struct{}

func (nopMetrics) EvaluationsInc()   {}
func (nopMetrics) TrainFailuresInc() {}

// Searcher walks subset candidates and scores every hyperparameter point on
// each via k-fold cross-validation. Within one subset the evaluations run
// concurrently; the searcher blocks on the whole batch before comparing
// scores.
type Searcher struct {
	set     *feature.Set
	sel     *subset.Selector
	trainer engine.Trainer
	weights score.ClassWeights
	opts    Options
	metrics MetricsSink
}

// New builds a Searcher over a cascade-filtered, coefficient-estimated set.
func New(set *feature.Set, sel *subset.Selector, trainer engine.Trainer, weights score.ClassWeights, opts Options) *Searcher {
	return &Searcher{set: set, sel: sel, trainer: trainer, weights: weights, opts: opts, metrics: nopMetrics{}}
}

// SetMetrics wires a metrics sink; by default metrics are dropped.
func (s *Searcher) SetMetrics(m MetricsSink) {
	if m != nil {
		s.metrics = m
	}
}

// evaluateSubset scores every grid point for one subset. Each job owns its
// Point; the fold data is shared read-only.
func (s *Searcher) evaluateSubset(sub []int, points []Point) (Point, error) {
	s.sel.SetSubset(sub)
	foldSet, err := cv.New(s.set, s.sel, s.opts.Folds)
	if err != nil {
		return Point{}, err
	}
	foldSet.SetMetrics(s.metrics)

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i := range points {
		p := &points[i]
		g.Go(func() error {
			p.CVScore, p.AvgSupport = foldSet.TrainAndValidate(s.trainer, p.Params, s.weights)
			s.metrics.EvaluationsInc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Point{}, err
	}

	// Per-subset comparison is strict: the first point seen keeps a tie.
	best := Point{CVScore: -1}
	for _, p := range points {
		if p.CVScore > best.CVScore {
			best = p
		}
	}

	if err := s.writeSurface(sub, points); err != nil {
		log.Warn().Err(err).Msg("could not write hyperparameter surface")
	}
	log.Info().Str("subset", subsetKey(sub)).Float64("score", best.CVScore).
		Float64("nu", best.Params.Nu).Float64("gamma", best.Params.Gamma).
		Msg("scored subset")
	return best, nil
}

// filterPoints keeps only the best keep points by score, descending.
func filterPoints(points []Point, keep int) []Point {
	if len(points) <= keep {
		return points
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CVScore > sorted[j].CVScore })
	return sorted[:keep]
}

// Run performs the stepwise search and returns the overall winner.
//
// Tie-break policy: within one subset and across subsets of one size the
// comparison is strict (>), so the first candidate seen keeps a tie; across
// sizes it is >=, so a later (smaller, for backward elimination) subset
// takes a tied score. This deliberately favors smaller subsets on ties.
func (s *Searcher) Run() (*Winner, error) {
	dims := s.set.Dims()
	candidates, mode, err := setupSubsets(s.opts.Dir, s.opts.Mode, dims)
	if err != nil {
		return nil, err
	}
	points, err := Grid(s.opts.Dir, engine.Params{NegWeight: s.weights.Neg, PosWeight: s.weights.Pos})
	if err != nil {
		return nil, err
	}

	allResults, err := os.Create(filepath.Join(s.opts.Dir, s.opts.Label+"-allResults.tsv"))
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	defer allResults.Close()
	bestResults, err := os.Create(filepath.Join(s.opts.Dir, s.opts.Label+"-bestResults.tsv"))
	if err != nil {
		return nil, fmt.Errorf("create results file: %w", err)
	}
	defer bestResults.Close()

	overall := Winner{Point: Point{CVScore: math.Inf(-1)}}

	for round := 0; round < dims; round++ {
		bestThisSize := Point{CVScore: math.Inf(-1)}
		var bestSubsetThisSize []int

		for _, key := range sortedKeys(candidates) {
			sub := candidates[key]
			best, err := s.evaluateSubset(sub, points)
			if err != nil {
				return nil, err
			}

			if s.opts.FilterHyperparams && len(sub) > dims/3 {
				points = filterPoints(points, s.opts.Folds)
			}

			logResult(allResults, sub, best)

			if best.CVScore > bestThisSize.CVScore {
				bestThisSize = best
				bestSubsetThisSize = sub
			}
		}
		logResult(bestResults, bestSubsetThisSize, bestThisSize)

		if bestThisSize.CVScore >= overall.Point.CVScore {
			overall = Winner{Subset: bestSubsetThisSize, Point: bestThisSize}
		}

		if mode == modeFromFile || mode == ModeNone {
			break
		}
		if mode == ModeForward {
			candidates = nextSubsetsForward(bestSubsetThisSize, dims)
		} else {
			candidates = nextSubsetsBackward(bestSubsetThisSize)
		}
		if len(candidates) == 0 {
			break
		}
	}

	if len(overall.Subset) == 0 {
		return nil, fmt.Errorf("feature subset search found no usable subset")
	}
	log.Info().Str("subset", subsetKey(overall.Subset)).Float64("score", overall.Point.CVScore).
		Msg("search complete")
	return &overall, nil
}

func logResult(f *os.File, sub []int, p Point) {
	fmt.Fprintf(f, "%d\t%s\t%g\t%g\t%g\n", len(sub), subsetKey(sub), p.Params.Nu, p.Params.Gamma, p.CVScore)
}

// writeSurface dumps the score surface for one subset, for contour-plot
// diagnostics.
func (s *Searcher) writeSurface(sub []int, points []Point) error {
	dir := filepath.Join(s.opts.Dir, "hyperparams")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "surface"+subsetKey(sub)+".tsv"))
	if err != nil {
		return err
	}
	defer f.Close()
	for _, p := range points {
		logGamma := -20.0
		if p.Params.Gamma > 0 {
			logGamma = math.Log(p.Params.Gamma)
		}
		fmt.Fprintf(f, "%g\t%g\t%g\t%g\n", p.Params.Nu, logGamma, p.CVScore, p.AvgSupport)
	}
	return nil
}
