package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records how often each index is computed.
type countingProvider struct {
	vals  []float64
	calls []int
}

func (p *countingProvider) Value(idx int) (float64, error) {
	p.calls[idx]++
	return p.vals[idx], nil
}

func (p *countingProvider) Dimension() int { return len(p.vals) }

func TestVectorCachesValues(t *testing.T) {
	t.Parallel()

	src := &countingProvider{vals: []float64{1.5, -2, 0}, calls: make([]int, 3)}
	v := NewVector(src)

	for i := 0; i < 3; i++ {
		got, err := v.Value(1)
		require.NoError(t, err)
		assert.Equal(t, -2.0, got)
	}
	assert.Equal(t, 1, src.calls[1], "underlying provider must be hit once per index")
	assert.Equal(t, 0, src.calls[0], "untouched indices must not be computed")
}

func TestVectorRejectsNonFinite(t *testing.T) {
	t.Parallel()

	v := NewVector(Values{math.NaN()})
	_, err := v.Value(0)
	assert.Error(t, err)

	v = NewVector(Values{math.Inf(1)})
	_, err = v.Materialize()
	assert.Error(t, err)
}

func TestVectorMaterialize(t *testing.T) {
	t.Parallel()

	src := &countingProvider{vals: []float64{3, 4}, calls: make([]int, 2)}
	v := NewVector(src)

	vals, err := v.Materialize()
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, vals)

	// A second materialize reuses the cache.
	_, err = v.Materialize()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, src.calls)
}

func TestValuesProvider(t *testing.T) {
	t.Parallel()

	f := Values{1, 2, 3}
	assert.Equal(t, 3, f.Dimension())
	got, err := f.Value(2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	_, err = f.Value(3)
	assert.Error(t, err)
	_, err = f.Value(-1)
	assert.Error(t, err)
}

func TestSetAddAndCount(t *testing.T) {
	t.Parallel()

	s := NewSet()
	require.NoError(t, s.Add([]float64{1, 2}, true))
	require.NoError(t, s.Add([]float64{3, 4}, false))
	require.NoError(t, s.Add([]float64{5, 6}, false))

	assert.Equal(t, 1, s.Count(true))
	assert.Equal(t, 2, s.Count(false))
	assert.Equal(t, 2, s.Dims())

	err := s.Add([]float64{1, 2, 3}, true)
	assert.Error(t, err, "dimension mismatch must be rejected")
}

func TestSetAddCopiesInput(t *testing.T) {
	t.Parallel()

	s := NewSet()
	vals := []float64{1, 2}
	require.NoError(t, s.Add(vals, true))
	vals[0] = 99

	assert.Equal(t, 1.0, s.Examples(true)[0][0])
}

func TestSetFilterLeavesOriginalIntact(t *testing.T) {
	t.Parallel()

	s := NewSet()
	require.NoError(t, s.Add([]float64{1}, true))
	require.NoError(t, s.Add([]float64{-1}, true))
	require.NoError(t, s.Add([]float64{2}, false))

	kept := s.Filter(func(vals []float64) bool { return vals[0] > 0 })

	assert.Equal(t, 1, kept.Count(true))
	assert.Equal(t, 1, kept.Count(false))
	assert.Equal(t, 2, s.Count(true), "filter must not mutate the source set")
	assert.Equal(t, 1, s.Count(false))
}

func TestSetRejectsEmptyVector(t *testing.T) {
	t.Parallel()

	s := NewSet()
	assert.Error(t, s.Add(nil, true))
	assert.Equal(t, 0, s.Count(true))
}
