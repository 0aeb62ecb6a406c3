// Package telemetry exposes Prometheus metrics for model fitting runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for inference observability.
type Metrics struct {
	FitsTotal         *prometheus.CounterVec // Completed fits by model name
	FitErrorsTotal    *prometheus.CounterVec // Failed fits by model name
	DivergencesTotal  *prometheus.CounterVec // Chains aborted with divergence errors
	NonConvergedTotal *prometheus.CounterVec // Fits whose max split R-hat exceeded threshold
	FitDuration       *prometheus.HistogramVec
}

// NewMetrics creates inference metrics registered against reg. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated from the global
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	fitsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsight_model_fits_total",
		Help: "Total number of completed model fits",
	}, []string{"model"})

	fitErrorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsight_model_fit_errors_total",
		Help: "Total number of failed model fits",
	}, []string{"model"})

	divergencesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsight_sampler_divergences_total",
		Help: "Total number of chains rejected for divergent proposals",
	}, []string{"model"})

	nonConvergedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetsight_model_nonconverged_total",
		Help: "Total number of fits flagged as non-converged by split R-hat",
	}, []string{"model"})

	fitDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetsight_model_fit_duration_seconds",
		Help:    "Wall-clock duration of model fits",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model"})

	reg.MustRegister(fitsTotal)
	reg.MustRegister(fitErrorsTotal)
	reg.MustRegister(divergencesTotal)
	reg.MustRegister(nonConvergedTotal)
	reg.MustRegister(fitDuration)

	return &Metrics{
		FitsTotal:         fitsTotal,
		FitErrorsTotal:    fitErrorsTotal,
		DivergencesTotal:  divergencesTotal,
		NonConvergedTotal: nonConvergedTotal,
		FitDuration:       fitDuration,
	}
}

// ObserveFit records the outcome of a single fit.
func (m *Metrics) ObserveFit(model string, d time.Duration, err error) {
	if err != nil {
		m.FitErrorsTotal.WithLabelValues(model).Inc()
		return
	}
	m.FitsTotal.WithLabelValues(model).Inc()
	m.FitDuration.WithLabelValues(model).Observe(d.Seconds())
}
