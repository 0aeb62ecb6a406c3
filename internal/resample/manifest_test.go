package resample

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
test_fraction: 0.25
bootstrap_iters: 500
resample_n: 2000
threshold: 0.4
hours_per_row: 12
target_rate: 0.15
seed: 99
methods:
  - uniform
  - importance
forest:
  trees: 50
  max_depth: 6
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, m.TestFraction)
	assert.Equal(t, 500, m.BootstrapIters)
	assert.Equal(t, 2000, m.ResampleN)
	assert.Equal(t, 0.4, m.Threshold)
	assert.Equal(t, 12.0, m.HoursPerRow)
	assert.Equal(t, 0.15, m.TargetRate)
	assert.Equal(t, uint64(99), m.Seed)
	assert.Equal(t, []string{"uniform", "importance"}, m.Methods)
	assert.Equal(t, 50, m.Forest.Trees)
	assert.Equal(t, 6, m.Forest.MaxDepth)
}

func TestLoadManifest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown method", "methods: [bogus]"},
		{"test fraction too large", "test_fraction: 1.0"},
		{"negative bootstrap iters", "bootstrap_iters: -1"},
		{"negative hours per row", "hours_per_row: -12"},
		{"target rate too large", "target_rate: 1.5"},
		{"malformed yaml", "methods: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestManifest_ExperimentConfig(t *testing.T) {
	m := &Manifest{
		TestFraction:   0.3,
		BootstrapIters: 200,
		ResampleN:      100,
		HoursPerRow:    6,
		Methods:        []string{"uniform", "stratified"},
		Seed:           7,
	}
	m.Forest.Trees = 25

	cfg := m.ExperimentConfig()

	assert.Equal(t, 0.3, cfg.TestFraction)
	assert.Equal(t, 200, cfg.BootstrapIters)
	assert.Equal(t, []Method{Uniform, Stratified}, cfg.Eval.Methods)
	assert.Equal(t, 100, cfg.Eval.ResampleN)
	assert.Equal(t, 6.0, cfg.Eval.HoursPerRow)
	assert.Equal(t, uint64(7), cfg.Seed)

	// Unset forest settings keep the defaults; set ones override.
	def := DefaultForestConfig()
	assert.Equal(t, 25, cfg.Eval.Forest.Trees)
	assert.Equal(t, def.MaxDepth, cfg.Eval.Forest.MaxDepth)
	assert.Equal(t, def.MinSamplesSplit, cfg.Eval.Forest.MinSamplesSplit)
	assert.Equal(t, uint64(7), cfg.Eval.Forest.Seed)
}

func TestManifest_EmptyIsValid(t *testing.T) {
	m, err := LoadManifest(writeManifest(t, "{}"))
	require.NoError(t, err)
	cfg := m.ExperimentConfig()
	assert.Empty(t, cfg.Eval.Methods)
	assert.Zero(t, cfg.TestFraction)
}
