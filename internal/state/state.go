// Package state persists everything needed to reproduce classification
// exactly at inference time: the boosting cascade, feature subset and
// normalization, sign correction, precision/boundary lookup, sigmoid
// calibration and a free-text training summary go into one YAML state file;
// the engine's own serialized model goes into a sibling file, present only
// when a trained classifier exists. State is written once per training run
// and read-only thereafter.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"svmcascade/internal/booster"
	"svmcascade/internal/calib"
	"svmcascade/internal/engine"
	"svmcascade/internal/subset"
)

// State is the persisted classifier bundle. SignCorrection 0 is the sentinel
// for "the boosting cascade alone discriminates all classes": no engine
// model exists and callers must short-circuit before touching the engine.
type State struct {
	Cascade        booster.Cascade     `yaml:"boosterStates"`
	FeatureSubset  []int               `yaml:"featureSubset"`
	Mean           []float64           `yaml:"normalisingMean"`
	Scale          []float64           `yaml:"normalisingScale"`
	SignCorrection float64             `yaml:"signCorrection"`
	Lookup         calib.PRLookup      `yaml:",inline"`
	Sigmoid        calib.SigmoidParams `yaml:",inline"`
	Summary        string              `yaml:"trainingDetails"`

	// Boundary is derived at load time from the lookup against the
	// caller's target precision; it is not itself persisted.
	Boundary float64 `yaml:"-"`
}

// StatePath is the YAML state file for one label inside dir.
func StatePath(dir, label string) string {
	return filepath.Join(dir, "savedSVMstate"+label+"_subset.yaml")
}

// ModelPath is the engine model file for one label inside dir.
func ModelPath(dir, label string) string {
	return filepath.Join(dir, "savedSVMstate"+label+".json")
}

// Selector rebuilds the feature selector from the persisted subset and
// coefficients.
func (s *State) Selector() (*subset.Selector, error) {
	return subset.New(s.FeatureSubset, s.Mean, s.Scale)
}

// Save writes the engine model file (when a trained classifier exists) and
// then the state file. The state file goes last so a serialization failure
// never leaves a state file pointing at a missing model sibling.
func Save(dir, label string, s *State, model engine.Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal classifier state: %w", err)
	}
	if s.SignCorrection != 0 {
		if model == nil {
			return fmt.Errorf("sign correction %g but no engine model to save", s.SignCorrection)
		}
		if err := model.Save(ModelPath(dir, label)); err != nil {
			return err
		}
	}
	if err := os.WriteFile(StatePath(dir, label), data, 0o644); err != nil {
		return fmt.Errorf("write classifier state: %w", err)
	}
	log.Info().Str("path", StatePath(dir, label)).Float64("sign", s.SignCorrection).
		Msg("saved classifier state")
	return nil
}

// Load reads the persisted state and derives the classification boundary for
// the requested target precision. Pass calib.NoPrecision to keep the raw
// boundary of 0.
func Load(dir, label string, targetPrecision float64) (*State, error) {
	path := StatePath(dir, label)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier state %s: %w", path, err)
	}
	s := new(State)
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse classifier state %s: %w", path, err)
	}

	if targetPrecision != calib.NoPrecision && !s.Lookup.Empty() {
		boundary, err := s.Lookup.InterpolateBoundary(targetPrecision)
		if err != nil {
			return nil, err
		}
		s.Boundary = boundary
	}

	if s.SignCorrection == 0 {
		log.Info().Msg("boosting-only classifier: all training outliers removed by the cascade, no engine model")
	}
	return s, nil
}

// LoadModel restores the engine model belonging to a loaded state. Must not
// be called when SignCorrection is 0.
func (s *State) LoadModel(dir, label string, load engine.Loader) (engine.Model, error) {
	if s.SignCorrection == 0 {
		return nil, fmt.Errorf("boosting-only classifier has no engine model")
	}
	model, err := load(ModelPath(dir, label))
	if err != nil {
		return nil, fmt.Errorf("load engine model: %w", err)
	}
	return model, nil
}
