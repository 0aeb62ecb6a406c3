package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/fleetsight/fleetsight/internal/config"
	"github.com/fleetsight/fleetsight/internal/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
	configPath    string
	outputDir     string
	modelVersion  string
	samples       int
	tune          int
	chains        int
	seed          uint64
)

var rootCmd = &cobra.Command{
	Use:   "fleetsight",
	Short: "Fleetsight - Rare-Event Safety Regression Detection",
	Long: `Fleetsight fits Bayesian survival and changepoint models to fleet
telemetry and evaluates importance-based resampling strategies, writing
results as warehouse-ready CSV files.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all subcommands
	// Supports per-package log levels: --log-level debug --log-level survival=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		[]string{"info"},
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level survival=debug --log-level mcmc=warn")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file; flags override its settings")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Directory for result CSV files")
	rootCmd.PersistentFlags().StringVar(&modelVersion, "model-version", "", "Version string stamped into result rows")
	rootCmd.PersistentFlags().IntVar(&samples, "samples", 0, "Posterior draws kept per chain")
	rootCmd.PersistentFlags().IntVar(&tune, "tune", 0, "Warmup iterations discarded per chain")
	rootCmd.PersistentFlags().IntVar(&chains, "chains", 0, "Number of parallel chains")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "Base random seed")

	// Add subcommands
	rootCmd.AddCommand(survivalCmd)
	rootCmd.AddCommand(changepointCmd)
	rootCmd.AddCommand(resampleCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration: file settings (when
// --config is given) layered over defaults, then flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if modelVersion != "" {
		cfg.ModelVersion = modelVersion
	}
	if samples > 0 {
		cfg.Sampler.Samples = samples
	}
	if tune > 0 {
		cfg.Sampler.Tune = tune
	}
	if chains > 0 {
		cfg.Sampler.Chains = chains
	}
	if seed > 0 {
		cfg.Sampler.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLog initializes the logging system with parsed log level flags
// Supports per-package log levels and environment variables
func setupLog(flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(flags)
	if err != nil {
		return err
	}

	if err := logging.Initialize(defaultLevel, packageLevels); err != nil {
		return err
	}
	return nil
}

// parseLogLevelFlags parses CLI flags and environment variables
// Priority: CLI flags > Environment variables
//
// CLI format: ["debug"], ["default=info", "survival=debug"], or ["info"]
// Env vars: LOG_LEVEL_SURVIVAL=debug (package name uppercased, dots to underscores)
//
// Returns: (defaultLevel, packageLevels map, error)
func parseLogLevelFlags(flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	for _, envPair := range os.Environ() {
		if strings.HasPrefix(envPair, "LOG_LEVEL_") {
			parts := strings.SplitN(envPair, "=", 2)
			if len(parts) != 2 {
				continue
			}
			packageName := convertEnvKeyToPackageName(parts[0])
			result[packageName] = parts[1]
		}
	}

	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			// Simple format like "debug" or "info" means default level
			result["default"] = flag
		} else {
			parts := strings.SplitN(flag, "=", 2)
			if len(parts) == 2 {
				result[parts[0]] = parts[1]
			}
		}
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}

	for pkg, level := range result {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %v", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_SURVIVAL -> survival
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}

// validateLogLevel checks if a level string is valid
func validateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", level)
	}
	return nil
}
