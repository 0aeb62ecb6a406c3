package commands

import (
	"errors"
	"time"

	"github.com/fleetsight/fleetsight/internal/logging"
	"github.com/fleetsight/fleetsight/internal/mcmc"
	"github.com/fleetsight/fleetsight/internal/telemetry"
)

// defaultRetryTune is the tuning length used for the divergence retry when
// the run was configured with no tuning phase at all.
const defaultRetryTune = 1000

// fitWithRetry runs a model fit under the sampler divergence policy: count
// the divergence, retry once with doubled tuning, and let a second failure
// surface to the caller. Every attempt is timed and observed.
func fitWithRetry[T any](metrics *telemetry.Metrics, model string, cfg mcmc.Config, fit func(mcmc.Config) (T, error)) (T, error) {
	out, err := timedFit(metrics, model, cfg, fit)
	var div *mcmc.DivergenceError
	if err == nil || !errors.As(err, &div) {
		return out, err
	}

	metrics.DivergencesTotal.WithLabelValues(model).Inc()
	retryCfg := cfg
	retryCfg.Tune = cfg.Tune * 2
	if retryCfg.Tune == 0 {
		retryCfg.Tune = defaultRetryTune
	}
	logging.GetLogger("commands").WarnWithFields("sampler diverged, retrying with longer tuning",
		logging.Field("model", model),
		logging.Field("chain", div.Chain),
		logging.Field("tune", retryCfg.Tune),
	)

	out, err = timedFit(metrics, model, retryCfg, fit)
	if err != nil && errors.As(err, &div) {
		metrics.DivergencesTotal.WithLabelValues(model).Inc()
	}
	return out, err
}

func timedFit[T any](metrics *telemetry.Metrics, model string, cfg mcmc.Config, fit func(mcmc.Config) (T, error)) (T, error) {
	start := time.Now()
	out, err := fit(cfg)
	metrics.ObserveFit(model, time.Since(start), err)
	return out, err
}
