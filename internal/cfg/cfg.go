// Package cfg loads and validates the training/inference configuration.
// A YAML file named by CONFIG_FILE is preferred; individual environment
// variables override the file and serve as the fallback when no file is
// given.
package cfg

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved configuration.
type Settings struct {
	OutputDir string // directory holding persisted state and side files
	Label     string // distinguishes multiple models sharing OutputDir
	DataPath  string // optional bbolt example store location

	NegRelativeWeight float64 // cost of mislabelling negatives, relative to positives
	FeatureSelection  string  // "none", "forward" or "backward"
	FilterHyperparams bool    // prune the grid once the subset grows
	Folds             int     // k for cross-validation
	Workers           int     // parallel hyperparameter evaluations

	BoosterMaxPositiveRatio    float64 // positives lost per negative removed
	BoosterMinNegativeFraction float64 // minimum share of negatives a stage removes
	BoosterMinNegativeCount    int     // minimum absolute negatives a stage removes
	UseBoosting                bool

	TargetPrecision float64 // operating point requested at load time; -1 disables
	MetricsPort     int     // 0 disables the metrics endpoint
}

// ConfigFile is the YAML layout.
type ConfigFile struct {
	Output struct {
		Dir      string `yaml:"dir"`
		Label    string `yaml:"label"`
		DataPath string `yaml:"dataPath"`
	} `yaml:"output"`

	Training struct {
		NegRelativeWeight float64 `yaml:"negRelativeWeight"`
		FeatureSelection  string  `yaml:"featureSelection"`
		FilterHyperparams *bool   `yaml:"filterHyperparams"`
		Folds             int     `yaml:"folds"`
		Workers           int     `yaml:"workers"`
	} `yaml:"training"`

	Booster struct {
		Enabled             *bool   `yaml:"enabled"`
		MaxPositiveRatio    float64 `yaml:"maxPositiveRatio"`
		MinNegativeFraction float64 `yaml:"minNegativeFraction"`
		MinNegativeCount    int     `yaml:"minNegativeCount"`
	} `yaml:"booster"`

	Inference struct {
		TargetPrecision *float64 `yaml:"targetPrecision"`
	} `yaml:"inference"`

	System struct {
		MetricsPort int `yaml:"metricsPort"`
	} `yaml:"system"`
}

// Load resolves Settings from CONFIG_FILE or the environment.
func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func defaults() Settings {
	return Settings{
		OutputDir:                  "model",
		Label:                      "",
		NegRelativeWeight:          1.0,
		FeatureSelection:           "backward",
		FilterHyperparams:          true,
		Folds:                      6,
		Workers:                    6,
		BoosterMaxPositiveRatio:    0.0005,
		BoosterMinNegativeFraction: 0.1,
		BoosterMinNegativeCount:    150,
		UseBoosting:                true,
		TargetPrecision:            -1,
		MetricsPort:                0,
	}
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	s := defaults()
	if config.Output.Dir != "" {
		s.OutputDir = config.Output.Dir
	}
	s.Label = config.Output.Label
	s.DataPath = config.Output.DataPath
	if config.Training.NegRelativeWeight != 0 {
		s.NegRelativeWeight = config.Training.NegRelativeWeight
	}
	if config.Training.FeatureSelection != "" {
		s.FeatureSelection = config.Training.FeatureSelection
	}
	if config.Training.FilterHyperparams != nil {
		s.FilterHyperparams = *config.Training.FilterHyperparams
	}
	if config.Training.Folds != 0 {
		s.Folds = config.Training.Folds
	}
	if config.Training.Workers != 0 {
		s.Workers = config.Training.Workers
	}
	if config.Booster.Enabled != nil {
		s.UseBoosting = *config.Booster.Enabled
	}
	if config.Booster.MaxPositiveRatio != 0 {
		s.BoosterMaxPositiveRatio = config.Booster.MaxPositiveRatio
	}
	if config.Booster.MinNegativeFraction != 0 {
		s.BoosterMinNegativeFraction = config.Booster.MinNegativeFraction
	}
	if config.Booster.MinNegativeCount != 0 {
		s.BoosterMinNegativeCount = config.Booster.MinNegativeCount
	}
	if config.Inference.TargetPrecision != nil {
		s.TargetPrecision = *config.Inference.TargetPrecision
	}
	s.MetricsPort = config.System.MetricsPort

	applyEnvOverrides(&s)

	if err := validateSettings(&s); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func loadFromEnv() (Settings, error) {
	s := defaults()
	applyEnvOverrides(&s)
	if err := validateSettings(&s); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func applyEnvOverrides(s *Settings) {
	s.OutputDir = getEnvOrDefault("OUTPUT_DIR", s.OutputDir)
	s.Label = getEnvOrDefault("MODEL_LABEL", s.Label)
	s.DataPath = getEnvOrDefault("DATA_PATH", s.DataPath)
	s.NegRelativeWeight = getFloatOrDefault("NEG_RELATIVE_WEIGHT", s.NegRelativeWeight)
	s.FeatureSelection = getEnvOrDefault("FEATURE_SELECTION", s.FeatureSelection)
	s.FilterHyperparams = getBoolOrDefault("FILTER_HYPERPARAMS", s.FilterHyperparams)
	s.Folds = getIntOrDefault("FOLDS", s.Folds)
	s.Workers = getIntOrDefault("WORKERS", s.Workers)
	s.UseBoosting = getBoolOrDefault("USE_BOOSTING", s.UseBoosting)
	s.BoosterMaxPositiveRatio = getFloatOrDefault("BOOSTER_MAX_POSITIVE_RATIO", s.BoosterMaxPositiveRatio)
	s.BoosterMinNegativeFraction = getFloatOrDefault("BOOSTER_MIN_NEGATIVE_FRACTION", s.BoosterMinNegativeFraction)
	s.BoosterMinNegativeCount = getIntOrDefault("BOOSTER_MIN_NEGATIVE_COUNT", s.BoosterMinNegativeCount)
	s.TargetPrecision = getFloatOrDefault("TARGET_PRECISION", s.TargetPrecision)
	s.MetricsPort = getIntOrDefault("METRICS_PORT", s.MetricsPort)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// validateSettings rejects configurations a training run must not start
// from.
func validateSettings(s *Settings) error {
	if s.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if s.NegRelativeWeight <= 0 {
		return fmt.Errorf("negative relative weight must be positive, got %f", s.NegRelativeWeight)
	}
	switch s.FeatureSelection {
	case "none", "forward", "backward":
	default:
		return fmt.Errorf("feature selection must be none, forward or backward, got %q", s.FeatureSelection)
	}
	if s.Folds < 2 || s.Folds > 20 {
		return fmt.Errorf("folds must be between 2 and 20, got %d", s.Folds)
	}
	if s.Workers < 1 || s.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got %d", s.Workers)
	}
	if s.BoosterMaxPositiveRatio <= 0 || s.BoosterMaxPositiveRatio >= 1 {
		return fmt.Errorf("booster max positive ratio must be in (0,1), got %f", s.BoosterMaxPositiveRatio)
	}
	if s.BoosterMinNegativeFraction <= 0 || s.BoosterMinNegativeFraction >= 1 {
		return fmt.Errorf("booster min negative fraction must be in (0,1), got %f", s.BoosterMinNegativeFraction)
	}
	if s.BoosterMinNegativeCount < 1 {
		return fmt.Errorf("booster min negative count must be at least 1, got %d", s.BoosterMinNegativeCount)
	}
	if s.TargetPrecision != -1 && (s.TargetPrecision <= 0 || s.TargetPrecision > 1) {
		return fmt.Errorf("target precision must be in (0,1] or -1 to disable, got %f", s.TargetPrecision)
	}
	if s.MetricsPort != 0 && (s.MetricsPort < 1024 || s.MetricsPort > 65535) {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	return nil
}
