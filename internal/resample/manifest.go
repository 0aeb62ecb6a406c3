package resample

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest describes a full experiment run loaded from a YAML file, so a
// comparison can be re-run from a checked-in description instead of a flag
// incantation.
type Manifest struct {
	TestFraction   float64  `yaml:"test_fraction,omitempty"`
	BootstrapIters int      `yaml:"bootstrap_iters,omitempty"`
	ResampleN      int      `yaml:"resample_n,omitempty"`
	Threshold      float64  `yaml:"threshold,omitempty"`
	HoursPerRow    float64  `yaml:"hours_per_row,omitempty"`
	TargetRate     float64  `yaml:"target_rate,omitempty"`
	Methods        []string `yaml:"methods,omitempty"` // empty means all four schemes
	Seed           uint64   `yaml:"seed,omitempty"`

	Forest struct {
		Trees           int `yaml:"trees,omitempty"`
		MaxDepth        int `yaml:"max_depth,omitempty"`
		MinSamplesSplit int `yaml:"min_samples_split,omitempty"`
	} `yaml:"forest,omitempty"`
}

// LoadManifest loads and validates an experiment manifest from a YAML file.
// Omitted fields keep the experiment defaults.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read experiment manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse experiment manifest YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment manifest: %w", err)
	}

	return &m, nil
}

// Validate checks that the manifest values are usable. Zero values are
// allowed everywhere; they mean "use the default".
func (m *Manifest) Validate() error {
	if m.TestFraction < 0 || m.TestFraction >= 1 {
		return fmt.Errorf("test_fraction must be in [0, 1), got %g", m.TestFraction)
	}
	if m.BootstrapIters < 0 {
		return fmt.Errorf("bootstrap_iters must not be negative, got %d", m.BootstrapIters)
	}
	if m.ResampleN < 0 {
		return fmt.Errorf("resample_n must not be negative, got %d", m.ResampleN)
	}
	if m.Threshold < 0 || m.Threshold >= 1 {
		return fmt.Errorf("threshold must be in [0, 1), got %g", m.Threshold)
	}
	if m.HoursPerRow < 0 {
		return fmt.Errorf("hours_per_row must not be negative, got %g", m.HoursPerRow)
	}
	if m.TargetRate < 0 || m.TargetRate >= 1 {
		return fmt.Errorf("target_rate must be in [0, 1), got %g", m.TargetRate)
	}
	known := map[string]bool{
		string(Uniform):    true,
		string(Stratified): true,
		string(Importance): true,
		string(Adaptive):   true,
	}
	for _, name := range m.Methods {
		if !known[name] {
			return fmt.Errorf("unknown method %q", name)
		}
	}
	return nil
}

// ExperimentConfig converts the manifest into the runnable configuration.
func (m *Manifest) ExperimentConfig() ExperimentConfig {
	methods := make([]Method, 0, len(m.Methods))
	for _, name := range m.Methods {
		methods = append(methods, Method(name))
	}

	forest := DefaultForestConfig()
	if m.Forest.Trees > 0 {
		forest.Trees = m.Forest.Trees
	}
	if m.Forest.MaxDepth > 0 {
		forest.MaxDepth = m.Forest.MaxDepth
	}
	if m.Forest.MinSamplesSplit > 0 {
		forest.MinSamplesSplit = m.Forest.MinSamplesSplit
	}
	if m.Seed != 0 {
		forest.Seed = m.Seed
	}

	return ExperimentConfig{
		TestFraction:   m.TestFraction,
		BootstrapIters: m.BootstrapIters,
		Eval: EvalConfig{
			Methods:     methods,
			ResampleN:   m.ResampleN,
			Threshold:   m.Threshold,
			HoursPerRow: m.HoursPerRow,
			Forest:      forest,
		},
		Seed: m.Seed,
	}
}
