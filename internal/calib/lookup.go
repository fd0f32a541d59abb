package calib

import (
	"fmt"
	"math"
)

// NoPrecision tells state loading to skip boundary re-derivation.
const NoPrecision = -1

// PRLookup is the sampled curve of achievable precision versus decision
// boundary, recorded while sweeping the boundary after the final refit.
type PRLookup struct {
	Boundaries []float64 `yaml:"boundaries"`
	Precisions []float64 `yaml:"precision"`
}

// Add appends one (boundary, precision) sample.
func (l *PRLookup) Add(boundary, precision float64) {
	l.Boundaries = append(l.Boundaries, boundary)
	l.Precisions = append(l.Precisions, precision)
}

// Empty reports whether any samples were recorded.
func (l *PRLookup) Empty() bool { return len(l.Boundaries) == 0 }

// InterpolateBoundary derives the decision boundary achieving the target
// precision by fitting a straight line through the two samples whose
// precisions are nearest the target. Works off the ends of the table as
// well. Degenerate fits (two samples with equal precision, a horizontal
// line) are fatal: they indicate a broken training run.
func (l *PRLookup) InterpolateBoundary(target float64) (float64, error) {
	if len(l.Boundaries) < 2 || len(l.Boundaries) != len(l.Precisions) {
		return 0, fmt.Errorf("precision lookup has %d boundaries and %d precisions", len(l.Boundaries), len(l.Precisions))
	}

	b1, b2 := 0.0, 0.0
	p1, p2 := math.Inf(1), math.Inf(1)
	for i := range l.Boundaries {
		b := l.Boundaries[i]
		p := l.Precisions[i]
		if math.Abs(p-target) < math.Abs(p1-target) {
			p2, b2 = p1, b1
			p1, b1 = p, b
		} else if math.Abs(p-target) < math.Abs(p2-target) {
			p2, b2 = p, b
		}
	}

	// Fit boundary = m*precision + c through the two nearest samples.
	m := (b2 - b1) / (p2 - p1)
	c := b1 - m*p1
	if math.IsNaN(m) || math.IsInf(m, 0) || math.Abs(c-(b2-m*p2)) > 1e-8 {
		return 0, fmt.Errorf("boundary interpolation degenerate near precision %f (horizontal line fit)", target)
	}
	return target*m + c, nil
}
