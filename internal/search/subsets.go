package search

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Mode selects the feature-subset search strategy.
type Mode string

const (
	// ModeNone trains on the full feature set with no subset search.
	ModeNone Mode = "none"
	// ModeForward starts from the empty subset and adds one feature at a
	// time.
	ModeForward Mode = "forward"
	// ModeBackward starts from the full subset and removes one feature at
	// a time.
	ModeBackward Mode = "backward"
	// modeFromFile is selected implicitly when a featureSet file exists.
	modeFromFile Mode = "file"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNone, ModeForward, ModeBackward:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown feature selection mode %q", s)
}

// subsetKey renders a subset as "0-3-5" for dedup, file names and logs.
func subsetKey(subset []int) string {
	parts := make([]string, len(subset))
	for i, idx := range subset {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "-")
}

// loadFixedSubset reads the one-index-per-line featureSet file; a negative
// index terminates the list.
func loadFixedSubset(path string, dims int) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feature subset file: %w", err)
	}
	var subset []int
	for _, field := range strings.Fields(string(data)) {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("parse feature subset file %s: %w", path, err)
		}
		if idx < 0 {
			break
		}
		if idx >= dims {
			return nil, fmt.Errorf("feature index %d out of range [0,%d) in %s", idx, dims, path)
		}
		subset = append(subset, idx)
	}
	if len(subset) == 0 || len(subset) > dims {
		return nil, fmt.Errorf("bad feature subset of size %d loaded from %s", len(subset), path)
	}
	log.Info().Ints("subset", subset).Msg("loaded fixed feature subset")
	return subset, nil
}

// setupSubsets builds the initial candidate set and resolves the effective
// mode: a featureSet file in the output directory overrides the configured
// strategy.
func setupSubsets(dir string, mode Mode, dims int) (map[string][]int, Mode, error) {
	candidates := map[string][]int{}

	if path := filepath.Join(dir, "featureSet"); fileExists(path) {
		subset, err := loadFixedSubset(path, dims)
		if err != nil {
			return nil, "", err
		}
		candidates[subsetKey(subset)] = subset
		return candidates, modeFromFile, nil
	}

	switch mode {
	case ModeNone, ModeBackward:
		full := make([]int, dims)
		for i := range full {
			full[i] = i
		}
		candidates[subsetKey(full)] = full
	case ModeForward:
		candidates = nextSubsetsForward(nil, dims)
	default:
		return nil, "", fmt.Errorf("unknown feature selection mode %q", mode)
	}
	return candidates, mode, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// nextSubsetsBackward removes each single currently-included feature in
// turn. Elimination stops at size 1: the empty subset is never a candidate.
func nextSubsetsBackward(best []int) map[string][]int {
	out := map[string][]int{}
	if len(best) <= 1 {
		return out
	}
	for _, remove := range best {
		var next []int
		for _, keep := range best {
			if keep != remove {
				next = append(next, keep)
			}
		}
		out[subsetKey(next)] = next
	}
	return out
}

// nextSubsetsForward adds each single not-yet-included feature in turn.
func nextSubsetsForward(best []int, dims int) map[string][]int {
	included := map[int]bool{}
	for _, idx := range best {
		included[idx] = true
	}
	out := map[string][]int{}
	for i := 0; i < dims; i++ {
		if included[i] {
			continue
		}
		next := make([]int, len(best), len(best)+1)
		copy(next, best)
		next = append(next, i)
		out[subsetKey(next)] = next
	}
	return out
}

// sortedKeys gives a stable iteration order over candidate subsets.
func sortedKeys(candidates map[string][]int) []string {
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
