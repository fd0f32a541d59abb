package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"none", "forward", "backward"} {
		m, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), m)
	}

	_, err := ParseMode("file")
	assert.Error(t, err, "file mode is only selected implicitly")
	_, err = ParseMode("sideways")
	assert.Error(t, err)
}

func TestSubsetKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0-3-5", subsetKey([]int{0, 3, 5}))
	assert.Equal(t, "7", subsetKey([]int{7}))
	assert.Equal(t, "", subsetKey(nil))
}

func TestNextSubsetsBackward(t *testing.T) {
	t.Parallel()

	next := nextSubsetsBackward([]int{0, 1, 2})
	require.Len(t, next, 3)
	assert.Equal(t, []int{1, 2}, next["1-2"])
	assert.Equal(t, []int{0, 2}, next["0-2"])
	assert.Equal(t, []int{0, 1}, next["0-1"])

	assert.Empty(t, nextSubsetsBackward([]int{4}), "elimination stops before the empty subset")
	assert.Empty(t, nextSubsetsBackward(nil))
}

func TestNextSubsetsForward(t *testing.T) {
	t.Parallel()

	next := nextSubsetsForward([]int{1}, 3)
	require.Len(t, next, 2)
	assert.Equal(t, []int{1, 0}, next["1-0"])
	assert.Equal(t, []int{1, 2}, next["1-2"])

	first := nextSubsetsForward(nil, 2)
	require.Len(t, first, 2)
	assert.Equal(t, []int{0}, first["0"])
	assert.Equal(t, []int{1}, first["1"])

	assert.Empty(t, nextSubsetsForward([]int{0, 1}, 2), "nothing left to add")
}

func TestLoadFixedSubset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "featureSet")

	require.NoError(t, os.WriteFile(path, []byte("2\n0\n-1\n5\n"), 0o644))
	subset, err := loadFixedSubset(path, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, subset, "a negative index terminates the list")

	require.NoError(t, os.WriteFile(path, []byte("9\n"), 0o644))
	_, err = loadFixedSubset(path, 4)
	assert.Error(t, err, "index out of range")

	require.NoError(t, os.WriteFile(path, []byte("-1\n"), 0o644))
	_, err = loadFixedSubset(path, 4)
	assert.Error(t, err, "empty subset")
}

func TestSetupSubsets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	candidates, mode, err := setupSubsets(dir, ModeBackward, 3)
	require.NoError(t, err)
	assert.Equal(t, ModeBackward, mode)
	require.Len(t, candidates, 1)
	assert.Equal(t, []int{0, 1, 2}, candidates["0-1-2"])

	candidates, mode, err = setupSubsets(dir, ModeForward, 3)
	require.NoError(t, err)
	assert.Equal(t, ModeForward, mode)
	assert.Len(t, candidates, 3)

	// A featureSet file overrides the configured strategy.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "featureSet"), []byte("1\n2\n"), 0o644))
	candidates, mode, err = setupSubsets(dir, ModeBackward, 3)
	require.NoError(t, err)
	assert.Equal(t, modeFromFile, mode)
	require.Len(t, candidates, 1)
	assert.Equal(t, []int{1, 2}, candidates["1-2"])
}

func TestSortedKeysIsStable(t *testing.T) {
	t.Parallel()

	candidates := map[string][]int{"2": {2}, "0": {0}, "1": {1}}
	assert.Equal(t, []string{"0", "1", "2"}, sortedKeys(candidates))
}
