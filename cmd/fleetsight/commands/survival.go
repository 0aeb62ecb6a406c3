package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fleetsight/fleetsight/internal/inference"
	"github.com/fleetsight/fleetsight/internal/ingest"
	"github.com/fleetsight/fleetsight/internal/logging"
	"github.com/fleetsight/fleetsight/internal/mcmc"
	"github.com/fleetsight/fleetsight/internal/results"
	"github.com/fleetsight/fleetsight/internal/survival"
	"github.com/fleetsight/fleetsight/internal/telemetry"
)

var (
	survivalInputPath    string
	survivalHorizonHours []float64
	survivalMetricsPort  int
)

var survivalCmd = &cobra.Command{
	Use:   "survival",
	Short: "Fit the hierarchical Weibull survival model",
	Long: `Fit the hierarchical Weibull time-to-event model on observation data
and append per-vehicle and fleet-level hazard and time-to-event summaries
to the survival results CSV.`,
	Run: runSurvival,
}

func init() {
	survivalCmd.Flags().StringVar(&survivalInputPath, "input", "",
		"CSV file with columns vehicle_id, time_to_event_hours, event_occurred")
	survivalCmd.Flags().Float64SliceVar(&survivalHorizonHours, "horizon-hours", []float64{24, 168},
		"Time points at which the baseline hazard rate is reported (one row each)")
	survivalCmd.Flags().IntVar(&survivalMetricsPort, "metrics-port", 0,
		"Expose Prometheus metrics on this port while fitting (0 disables)")
	_ = survivalCmd.MarkFlagRequired("input")
}

func runSurvival(cmd *cobra.Command, args []string) {
	HandleError(setupLog(logLevelFlags), "Failed to initialize logging")
	logger := logging.GetLogger("commands")

	cfg, err := loadConfig()
	HandleError(err, "Invalid configuration")

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	if survivalMetricsPort > 0 {
		telemetry.Serve(survivalMetricsPort, registry)
	}

	obs, err := ingest.ReadObservations(survivalInputPath)
	HandleError(err, "Failed to read observations")

	data, err := survival.Prepare(obs)
	HandleError(err, "Failed to prepare observations")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samplerCfg := mcmc.Config{
		Samples: cfg.Sampler.Samples,
		Tune:    cfg.Sampler.Tune,
		Chains:  cfg.Sampler.Chains,
		Seed:    cfg.Sampler.Seed,
	}

	fitted, err := fitWithRetry(metrics, "survival", samplerCfg, func(c mcmc.Config) (*survival.Fitted, error) {
		return survival.Fit(ctx, data, c)
	})
	HandleError(err, "Survival fit failed")

	diags, err := fitted.Diagnostics()
	HandleError(err, "Failed to compute diagnostics")
	maxRHat := fitted.Samples.MaxRHat()
	minESS := fitted.Samples.MinESS()
	if !results.Converged(maxRHat) {
		metrics.NonConvergedTotal.WithLabelValues("survival").Inc()
		logger.WarnWithFields("survival fit did not converge",
			logging.Field("max_rhat", maxRHat),
			logging.Field("params", len(diags)),
		)
	}

	hyper := results.Hyperparameters{
		Samples: samplerCfg.Samples,
		Tune:    samplerCfg.Tune,
		Chains:  samplerCfg.Chains,
		Seed:    samplerCfg.Seed,
	}.JSON()

	runID := results.NewSurvivalRunID()
	now := time.Now().UTC()
	records := make([]results.SurvivalRecord, 0, (data.NumVehicles()+1)*len(survivalHorizonHours))

	appendRecord := func(subjectID string, vehicle int) {
		hazard, err := fitted.PredictHazard(survivalHorizonHours, vehicle, inference.DefaultCredibleMass)
		HandleError(err, "Failed to predict hazard")
		mtte, err := fitted.PredictMeanTimeToEvent(vehicle, inference.DefaultCredibleMass)
		HandleError(err, "Failed to predict time to event")

		for h, horizon := range survivalHorizonHours {
			records = append(records, results.SurvivalRecord{
				RunID:                  runID,
				RunTimestamp:           now,
				SubjectID:              subjectID,
				DateKey:                results.DateKey(now),
				PredictionHorizonHours: horizon,
				BaselineHazardRate:     hazard[h].Mean,
				HazardRateLowerCI:      hazard[h].Lower,
				HazardRateUpperCI:      hazard[h].Upper,
				PredictedTimeHours:     mtte.Mean,
				PredictedTimeLowerCI:   mtte.Lower,
				PredictedTimeUpperCI:   mtte.Upper,
				ConvergenceFlag:        results.Converged(maxRHat),
				MaxRHat:                maxRHat,
				EffectiveSampleSize:    minESS,
				ModelVersion:           cfg.ModelVersion,
				HyperparametersJSON:    hyper,
			})
		}
	}

	appendRecord(results.AggregateSubject, survival.Population)
	for i, id := range data.VehicleIDs {
		appendRecord(id, i)
	}

	store, err := results.NewStore(cfg.OutputDir)
	HandleError(err, "Failed to open results store")
	HandleError(store.AppendSurvival(records), "Failed to write survival results")

	logger.InfoWithFields("survival run complete",
		logging.Field("run_id", runID),
		logging.Field("rows", len(records)),
		logging.Field("max_rhat", maxRHat),
		logging.Field("output_dir", cfg.OutputDir),
	)
}
