// Package search drives the joint hyperparameter and feature-subset search:
// it enumerates log-uniform hyperparameter grids, walks subset candidates
// stepwise forward or backward, fans the cross-validation jobs out over a
// bounded worker group, and records score surfaces for diagnostics.
package search

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"svmcascade/internal/engine"
)

// Range bounds one hyperparameter's 1-D grid.
type Range struct {
	Lo    float64
	Hi    float64
	Steps int
}

// Grid defaults. Nu is sampled log-uniformly in a small base so the low end
// is well resolved; gamma is sampled on the natural log scale.
const nuLogBase = 1.5

func defaultNuRange() Range        { return Range{Lo: 0.0005, Hi: 0.4, Steps: 10} }
func defaultGammaRange() Range     { return Range{Lo: -14, Hi: 5, Steps: 10} } // bounds are log(gamma)
func rangeFile(name string) string { return name + "-LoHiSteps" }

// LoadRange reads "<name>-LoHiSteps" from dir, or writes the default there
// so repeated runs are reproducible.
func LoadRange(dir, name string, def Range) (Range, error) {
	path := filepath.Join(dir, rangeFile(name))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		content := fmt.Sprintf("%g %g %d", def.Lo, def.Hi, def.Steps)
		if werr := os.WriteFile(path, []byte(content), 0o644); werr != nil {
			return Range{}, fmt.Errorf("persist hyperparameter range %s: %w", name, werr)
		}
		return def, nil
	}
	if err != nil {
		return Range{}, fmt.Errorf("read hyperparameter range %s: %w", name, err)
	}
	var r Range
	if _, err := fmt.Sscan(string(data), &r.Lo, &r.Hi, &r.Steps); err != nil {
		return Range{}, fmt.Errorf("parse hyperparameter range %s: %w", path, err)
	}
	if r.Steps < 1 || r.Lo >= r.Hi {
		return Range{}, fmt.Errorf("bad hyperparameter range %s: lo=%g hi=%g steps=%d", name, r.Lo, r.Hi, r.Steps)
	}
	log.Info().Str("name", name).Float64("lo", r.Lo).Float64("hi", r.Hi).Int("steps", r.Steps).
		Msg("loaded hyperparameter range")
	return r, nil
}

// Point is one hyperparameter configuration plus its diagnostics. Each
// evaluation job owns a distinct Point, so no locking guards the score
// fields.
type Point struct {
	Params     engine.Params
	CVScore    float64
	AvgSupport float64
}

func logB(x, base float64) float64 {
	return math.Log(x) / math.Log(base)
}

// Grid builds the cross product of the nu and gamma 1-D grids, loading (or
// persisting) the grid bounds from side files in dir.
func Grid(dir string, weights engine.Params) ([]Point, error) {
	nuRange, err := LoadRange(dir, "nu", defaultNuRange())
	if err != nil {
		return nil, err
	}
	gammaRange, err := LoadRange(dir, "loggamma", defaultGammaRange())
	if err != nil {
		return nil, err
	}

	var nus []float64
	logLo, logHi := logB(nuRange.Lo, nuLogBase), logB(nuRange.Hi, nuLogBase)
	step := (logHi - logLo) / (float64(nuRange.Steps) - 0.999)
	for x := logLo; x < logHi; x += step {
		nus = append(nus, math.Pow(nuLogBase, x))
	}

	var gammas []float64
	gStep := (gammaRange.Hi - gammaRange.Lo) / (float64(gammaRange.Steps) - 0.999)
	for x := gammaRange.Lo; x < gammaRange.Hi; x += gStep {
		gammas = append(gammas, math.Exp(x))
	}

	points := make([]Point, 0, len(nus)*len(gammas))
	for _, gamma := range gammas {
		for _, nu := range nus {
			points = append(points, Point{
				Params: engine.Params{
					Nu:        nu,
					Gamma:     gamma,
					NegWeight: weights.NegWeight,
					PosWeight: weights.PosWeight,
				},
				CVScore:    -1,
				AvgSupport: -1,
			})
		}
	}
	return points, nil
}
