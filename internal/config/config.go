package config

// SamplerConfig holds MCMC settings shared by all models.
type SamplerConfig struct {
	// Samples is the number of posterior draws kept per chain
	Samples int `yaml:"samples"`

	// Tune is the number of warmup iterations discarded per chain
	Tune int `yaml:"tune"`

	// Chains is the number of independent chains run in parallel
	Chains int `yaml:"chains"`

	// Seed is the base random seed; each chain derives its own stream from it
	Seed uint64 `yaml:"seed"`
}

// Config holds all configuration for the application
type Config struct {
	// OutputDir is the directory where result CSV files are written
	OutputDir string `yaml:"output_dir"`

	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// ModelVersion is stamped into every result row
	ModelVersion string `yaml:"model_version"`

	// Sampler configures the MCMC runs
	Sampler SamplerConfig `yaml:"sampler"`

	// HoursPerStep converts series step indices to wall-clock hours
	HoursPerStep float64 `yaml:"hours_per_step"`

	// ChangepointThreshold is the posterior probability above which a
	// changepoint counts as detected
	ChangepointThreshold float64 `yaml:"changepoint_threshold"`

	// TargetRareRate is the rare-event share aimed for by stratified and
	// importance resampling
	TargetRareRate float64 `yaml:"target_rare_rate"`
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:    "results",
		LogLevel:     "info",
		ModelVersion: "1.0.0",
		Sampler: SamplerConfig{
			Samples: 2000,
			Tune:    1000,
			Chains:  4,
			Seed:    42,
		},
		HoursPerStep:         24,
		ChangepointThreshold: 0.5,
		TargetRareRate:       0.1,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return NewConfigError("OutputDir must not be empty")
	}

	if c.ModelVersion == "" {
		return NewConfigError("ModelVersion must not be empty")
	}

	if c.Sampler.Samples < 1 {
		return NewConfigError("Sampler.Samples must be at least 1")
	}

	if c.Sampler.Tune < 0 {
		return NewConfigError("Sampler.Tune must not be negative")
	}

	if c.Sampler.Chains < 2 {
		return NewConfigError("Sampler.Chains must be at least 2 for split R-hat")
	}

	if c.HoursPerStep <= 0 {
		return NewConfigError("HoursPerStep must be positive")
	}

	if c.ChangepointThreshold <= 0 || c.ChangepointThreshold >= 1 {
		return NewConfigError("ChangepointThreshold must be strictly between 0 and 1")
	}

	if c.TargetRareRate <= 0 || c.TargetRareRate >= 1 {
		return NewConfigError("TargetRareRate must be strictly between 0 and 1")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
