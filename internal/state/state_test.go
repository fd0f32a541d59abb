package state

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmcascade/internal/booster"
	"svmcascade/internal/calib"
	"svmcascade/internal/engine"
)

// fileModel writes a marker file as its serialized form.
type fileModel struct{ payload string }

func (m fileModel) PredictRaw([]float64) (float64, error) { return 0, nil }
func (m fileModel) SupportCount() int                     { return 1 }
func (m fileModel) Save(path string) error {
	return os.WriteFile(path, []byte(m.payload), 0o644)
}

func sampleState() *State {
	s := &State{
		Cascade: booster.Cascade{
			{FeatureIdx: 2, Threshold: 1.5, RejectAbove: true},
		},
		FeatureSubset:  []int{0, 2},
		Mean:           []float64{0.5, -1, 3},
		Scale:          []float64{2, 1, 0.25},
		SignCorrection: -1,
		Sigmoid:        calib.SigmoidParams{ThreshLo: 0.05, ThreshHi: 0.95, Shift: 0.1, Scale: 2},
		Summary:        "Training from 200 positive and 1000 negative examples\n",
	}
	s.Lookup.Add(-1, 0.5)
	s.Lookup.Add(0, 0.8)
	s.Lookup.Add(1, 0.95)
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	saved := sampleState()
	require.NoError(t, Save(dir, "cars", saved, fileModel{payload: "model-bytes"}))

	loaded, err := Load(dir, "cars", calib.NoPrecision)
	require.NoError(t, err)

	assert.Equal(t, saved.Cascade, loaded.Cascade)
	assert.Equal(t, saved.FeatureSubset, loaded.FeatureSubset)
	assert.Equal(t, saved.Mean, loaded.Mean)
	assert.Equal(t, saved.Scale, loaded.Scale)
	assert.Equal(t, saved.SignCorrection, loaded.SignCorrection)
	assert.Equal(t, saved.Sigmoid, loaded.Sigmoid)
	assert.Equal(t, saved.Lookup, loaded.Lookup)
	assert.Equal(t, saved.Summary, loaded.Summary)
	assert.Equal(t, 0.0, loaded.Boundary, "no target precision keeps the raw boundary")

	data, err := os.ReadFile(ModelPath(dir, "cars"))
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))
}

func TestLoadDerivesBoundaryFromTargetPrecision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, Save(dir, "x", sampleState(), fileModel{}))

	loaded, err := Load(dir, "x", 0.9)
	require.NoError(t, err)
	// 0.9 falls between the precision samples at boundaries 0 and 1.
	assert.Greater(t, loaded.Boundary, 0.0)
	assert.Less(t, loaded.Boundary, 1.0)

	// A different operating point gives a different boundary from the same
	// state file.
	other, err := Load(dir, "x", 0.6)
	require.NoError(t, err)
	assert.Less(t, other.Boundary, loaded.Boundary)
}

func TestSaveBoostingOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := &State{
		Cascade:        booster.Cascade{{FeatureIdx: 0, Threshold: 2, RejectAbove: true}},
		SignCorrection: 0,
		Sigmoid:        calib.DefaultSigmoid(),
	}
	require.NoError(t, Save(dir, "b", s, nil))

	_, err := os.Stat(ModelPath(dir, "b"))
	assert.True(t, os.IsNotExist(err), "boosting-only state has no model file")

	loaded, err := Load(dir, "b", 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.0, loaded.SignCorrection)
	assert.Equal(t, 0.0, loaded.Boundary, "empty lookup skips boundary derivation")

	_, err = loaded.LoadModel(dir, "b", func(string) (engine.Model, error) {
		t.Fatal("loader must not be called for a boosting-only state")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestSaveRejectsMissingModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := sampleState()
	assert.Error(t, Save(dir, "x", s, nil), "a trained sign correction requires a model")

	_, err := os.Stat(StatePath(dir, "x"))
	assert.True(t, os.IsNotExist(err), "failed save must not leave a state file")
}

// brokenModel fails to serialize.
type brokenModel struct{ fileModel }

func (brokenModel) Save(string) error { return os.ErrPermission }

func TestSaveModelFailureLeavesNoStateFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := Save(dir, "x", sampleState(), brokenModel{})
	require.Error(t, err)

	_, err = os.Stat(StatePath(dir, "x"))
	assert.True(t, os.IsNotExist(err), "state file must not outlive its model sibling")
	_, err = os.Stat(ModelPath(dir, "x"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissingState(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), "absent", calib.NoPrecision)
	assert.Error(t, err)
}

func TestSelectorFromState(t *testing.T) {
	t.Parallel()

	sel, err := sampleState().Selector()
	require.NoError(t, err)
	out, err := sel.SelectAndNormalize([]float64{1, 2, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{(1 - 0.5) * 2, (5 - 3) * 0.25}, out)

	bad := sampleState()
	bad.FeatureSubset = []int{9}
	_, err = bad.Selector()
	assert.Error(t, err)
}
