package commands

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsight/fleetsight/internal/mcmc"
	"github.com/fleetsight/fleetsight/internal/telemetry"
)

func testMetrics() *telemetry.Metrics {
	return telemetry.NewMetrics(prometheus.NewRegistry())
}

func TestFitWithRetry_SuccessNoRetry(t *testing.T) {
	metrics := testMetrics()
	calls := 0

	out, err := fitWithRetry(metrics, "survival", mcmc.Config{Tune: 500}, func(c mcmc.Config) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 1, calls)
	assert.Zero(t, testutil.ToFloat64(metrics.DivergencesTotal.WithLabelValues("survival")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FitsTotal.WithLabelValues("survival")))
}

func TestFitWithRetry_DivergenceRetriesWithLargerTune(t *testing.T) {
	metrics := testMetrics()
	var tunes []int

	out, err := fitWithRetry(metrics, "survival", mcmc.Config{Tune: 500}, func(c mcmc.Config) (int, error) {
		tunes = append(tunes, c.Tune)
		if len(tunes) == 1 {
			return 0, &mcmc.DivergenceError{Chain: 2, Reason: "non-finite log density at initial values"}
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, out)
	require.Equal(t, []int{500, 1000}, tunes)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DivergencesTotal.WithLabelValues("survival")))
	// One failed attempt, one successful attempt.
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FitErrorsTotal.WithLabelValues("survival")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FitsTotal.WithLabelValues("survival")))
}

func TestFitWithRetry_SecondDivergenceSurfaces(t *testing.T) {
	metrics := testMetrics()
	calls := 0

	_, err := fitWithRetry(metrics, "changepoint", mcmc.Config{Tune: 100}, func(c mcmc.Config) (int, error) {
		calls++
		return 0, &mcmc.DivergenceError{Chain: 0, Reason: "majority of proposals had non-finite log density"}
	})

	require.Error(t, err)
	var div *mcmc.DivergenceError
	assert.True(t, errors.As(err, &div))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.DivergencesTotal.WithLabelValues("changepoint")))
}

func TestFitWithRetry_NonDivergenceErrorDoesNotRetry(t *testing.T) {
	metrics := testMetrics()
	calls := 0
	boom := errors.New("input rows are unusable")

	_, err := fitWithRetry(metrics, "survival", mcmc.Config{Tune: 500}, func(c mcmc.Config) (int, error) {
		calls++
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Zero(t, testutil.ToFloat64(metrics.DivergencesTotal.WithLabelValues("survival")))
}

func TestFitWithRetry_ZeroTuneGetsTuningPhase(t *testing.T) {
	metrics := testMetrics()
	var tunes []int

	_, _ = fitWithRetry(metrics, "survival", mcmc.Config{Tune: 0}, func(c mcmc.Config) (int, error) {
		tunes = append(tunes, c.Tune)
		return 0, &mcmc.DivergenceError{Chain: 1, Reason: "non-finite log density at initial values"}
	})

	require.Len(t, tunes, 2)
	assert.Equal(t, defaultRetryTune, tunes[1])
}
