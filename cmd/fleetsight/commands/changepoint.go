package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fleetsight/fleetsight/internal/changepoint"
	"github.com/fleetsight/fleetsight/internal/ingest"
	"github.com/fleetsight/fleetsight/internal/logging"
	"github.com/fleetsight/fleetsight/internal/mcmc"
	"github.com/fleetsight/fleetsight/internal/results"
	"github.com/fleetsight/fleetsight/internal/telemetry"
)

var (
	changepointInputPath   string
	changepointPerVehicle  bool
	changepointMetricsPort int
)

var changepointCmd = &cobra.Command{
	Use:   "changepoint",
	Short: "Detect event-rate change-points",
	Long: `Fit the Poisson change-point model on daily event counts, either on
the fleet-wide aggregate series or per vehicle, and append detection
summaries to the changepoint results CSV.`,
	Run: runChangepoint,
}

func init() {
	changepointCmd.Flags().StringVar(&changepointInputPath, "input", "",
		"CSV file with columns vehicle_id, t, event_count, exposure, date")
	changepointCmd.Flags().BoolVar(&changepointPerVehicle, "per-vehicle", false,
		"Fit one model per vehicle instead of the fleet aggregate")
	changepointCmd.Flags().IntVar(&changepointMetricsPort, "metrics-port", 0,
		"Expose Prometheus metrics on this port while fitting (0 disables)")
	_ = changepointCmd.MarkFlagRequired("input")
}

func runChangepoint(cmd *cobra.Command, args []string) {
	HandleError(setupLog(logLevelFlags), "Failed to initialize logging")
	logger := logging.GetLogger("commands")

	cfg, err := loadConfig()
	HandleError(err, "Invalid configuration")

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	if changepointMetricsPort > 0 {
		telemetry.Serve(changepointMetricsPort, registry)
	}

	rows, err := ingest.ReadEventSeries(changepointInputPath)
	HandleError(err, "Failed to read event series")

	var series []*changepoint.Series
	if changepointPerVehicle {
		series, err = changepoint.PrepareByVehicle(rows)
	} else {
		var agg *changepoint.Series
		agg, err = changepoint.PrepareAggregate(rows)
		series = []*changepoint.Series{agg}
	}
	HandleError(err, "Failed to prepare event series")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samplerCfg := mcmc.Config{
		Samples: cfg.Sampler.Samples,
		Tune:    cfg.Sampler.Tune,
		Chains:  cfg.Sampler.Chains,
		Seed:    cfg.Sampler.Seed,
	}
	hyper := results.Hyperparameters{
		Samples: samplerCfg.Samples,
		Tune:    samplerCfg.Tune,
		Chains:  samplerCfg.Chains,
		Seed:    samplerCfg.Seed,
	}.JSON()
	opts := changepoint.DetectOptions{
		ThresholdProbability: cfg.ChangepointThreshold,
		HoursPerStep:         cfg.HoursPerStep,
	}

	runID := results.NewChangepointRunID()
	now := time.Now().UTC()
	records := make([]results.ChangepointRecord, 0, len(series))

	for _, s := range series {
		fitted, err := fitWithRetry(metrics, "changepoint", samplerCfg, func(c mcmc.Config) (*changepoint.Fitted, error) {
			return changepoint.Fit(ctx, s, c)
		})
		HandleError(err, "Changepoint fit failed")

		det, err := fitted.Detect(opts)
		HandleError(err, "Changepoint detection failed")

		maxRHat := fitted.Samples.MaxRHat()
		if !results.Converged(maxRHat) {
			metrics.NonConvergedTotal.WithLabelValues("changepoint").Inc()
			logger.WarnWithFields("changepoint fit did not converge",
				logging.Field("subject", s.SubjectID),
				logging.Field("max_rhat", maxRHat),
			)
		}

		rec := results.ChangepointRecord{
			RunID:                  runID,
			RunTimestamp:           now,
			SubjectID:              det.SubjectID,
			DateKey:                results.DateKey(now),
			Detected:               det.Detected,
			ChangepointIndex:       det.TauIndex,
			ChangepointProbability: det.ChangepointProbability,
			PreChangeHazardRate:    det.PreChangeRate,
			PostChangeHazardRate:   det.PostChangeRate,
			HazardRatio:            det.HazardRatio.Mean,
			HazardRatioLowerCI:     det.HazardRatio.Lower,
			HazardRatioUpperCI:     det.HazardRatio.Upper,
			MTTDHours:              det.MTTDHours,
			ConvergenceFlag:        results.Converged(maxRHat),
			MaxRHat:                maxRHat,
			ModelVersion:           cfg.ModelVersion,
			HyperparametersJSON:    hyper,
		}
		if !det.ChangepointDate.IsZero() {
			rec.ChangepointTimestamp = det.ChangepointDate.UTC().Format(time.RFC3339)
		}
		records = append(records, rec)
	}

	store, err := results.NewStore(cfg.OutputDir)
	HandleError(err, "Failed to open results store")
	HandleError(store.AppendChangepoint(records), "Failed to write changepoint results")

	logger.InfoWithFields("changepoint run complete",
		logging.Field("run_id", runID),
		logging.Field("series", len(series)),
		logging.Field("output_dir", cfg.OutputDir),
	)
}
