package survival

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/exp/rand"

	"github.com/fleetsight/fleetsight/internal/inference"
	"github.com/fleetsight/fleetsight/internal/mcmc"
)

// syntheticObservations draws Weibull(shape, scale) event times for several
// vehicles via the inverse CDF, censoring everything beyond the horizon.
func syntheticObservations(vehicles, perVehicle int, shape, scale, horizon float64, seed uint64) []Observation {
	rng := rand.New(rand.NewSource(seed))
	var out []Observation
	for v := 0; v < vehicles; v++ {
		id := fmt.Sprintf("veh-%03d", v)
		for i := 0; i < perVehicle; i++ {
			t := scale * math.Pow(-math.Log(1-rng.Float64()), 1/shape)
			if t > horizon {
				out = append(out, Observation{VehicleID: id, TimeToEventHours: horizon, EventOccurred: false})
			} else {
				out = append(out, Observation{VehicleID: id, TimeToEventHours: t, EventOccurred: true})
			}
		}
	}
	return out
}

func TestPrepare_DropsIncompleteRows(t *testing.T) {
	rows := []Observation{
		{VehicleID: "", TimeToEventHours: 10, EventOccurred: true},
		{VehicleID: "a", TimeToEventHours: math.NaN(), EventOccurred: true},
		{VehicleID: "a", TimeToEventHours: -5, EventOccurred: true},
		{VehicleID: "a", TimeToEventHours: 0, EventOccurred: true},
	}
	for i := 0; i < 6; i++ {
		rows = append(rows,
			Observation{VehicleID: "a", TimeToEventHours: 10 + float64(i), EventOccurred: true},
			Observation{VehicleID: "b", TimeToEventHours: 20 + float64(i), EventOccurred: false},
		)
	}

	data, err := Prepare(rows)
	require.NoError(t, err)

	assert.Equal(t, 12, len(data.Times))
	assert.Equal(t, 2, data.NumVehicles())
	for _, tt := range data.Times {
		assert.Greater(t, tt, 0.0)
	}
}

func TestPrepare_FirstAppearanceIndexing(t *testing.T) {
	var rows []Observation
	for i := 0; i < 5; i++ {
		rows = append(rows,
			Observation{VehicleID: "zulu", TimeToEventHours: 10, EventOccurred: true},
			Observation{VehicleID: "alpha", TimeToEventHours: 20, EventOccurred: true},
		)
	}

	data, err := Prepare(rows)
	require.NoError(t, err)

	// Dense indices follow input order, not lexicographic order.
	assert.Equal(t, []string{"zulu", "alpha"}, data.VehicleIDs)
	assert.Equal(t, 0, data.VehicleIdx[0])
	assert.Equal(t, 1, data.VehicleIdx[1])
}

func TestPrepare_InsufficientVehicles(t *testing.T) {
	var rows []Observation
	for i := 0; i < 20; i++ {
		rows = append(rows, Observation{VehicleID: "only", TimeToEventHours: 10, EventOccurred: true})
	}

	_, err := Prepare(rows)
	require.Error(t, err)

	var dataErr *inference.InsufficientDataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, 1, dataErr.Available)
	assert.Equal(t, 2, dataErr.Required)
}

func TestPrepare_InsufficientObservations(t *testing.T) {
	rows := []Observation{
		{VehicleID: "a", TimeToEventHours: 10, EventOccurred: true},
		{VehicleID: "b", TimeToEventHours: 20, EventOccurred: true},
	}

	_, err := Prepare(rows)
	require.Error(t, err)

	var dataErr *inference.InsufficientDataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "observations", dataErr.Detail)
}

func TestFit_RecoversSyntheticParameters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MCMC fit in short mode")
	}

	obs := syntheticObservations(4, 50, 1.5, 100, 250, 42)
	data, err := Prepare(obs)
	require.NoError(t, err)

	cfg := mcmc.Config{Samples: 1500, Tune: 1500, Chains: 2, Seed: 42}
	fitted, err := Fit(context.Background(), data, cfg)
	require.NoError(t, err)

	alphas := fitted.Samples.Flat("alpha")
	require.NotEmpty(t, alphas)
	alphaMean := 0.0
	for _, a := range alphas {
		alphaMean += a
	}
	alphaMean /= float64(len(alphas))
	// True shape is 1.5; the posterior mean must land inside [1, 2].
	assert.Greater(t, alphaMean, 1.0, "shape posterior should detect increasing hazard")
	assert.Less(t, alphaMean, 2.0)

	mtte, err := fitted.PredictMeanTimeToEvent(Population, 0.95)
	require.NoError(t, err)
	// True mean is 100*Gamma(1+1/1.5) ~ 90.3 hours.
	assert.Greater(t, mtte.Mean, 55.0)
	assert.Less(t, mtte.Mean, 145.0)
	assert.LessOrEqual(t, mtte.Lower, mtte.Mean)
	assert.LessOrEqual(t, mtte.Mean, mtte.Upper)
}

func TestFit_PerVehiclePredictions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MCMC fit in short mode")
	}

	obs := syntheticObservations(3, 30, 1.5, 100, 250, 7)
	data, err := Prepare(obs)
	require.NoError(t, err)

	cfg := mcmc.Config{Samples: 600, Tune: 600, Chains: 2, Seed: 7}
	fitted, err := Fit(context.Background(), data, cfg)
	require.NoError(t, err)

	for v := 0; v < data.NumVehicles(); v++ {
		points, err := fitted.PredictHazard([]float64{24, 168}, v, 0.95)
		require.NoError(t, err)
		require.Len(t, points, 2)
		for _, p := range points {
			assert.Greater(t, p.Mean, 0.0)
			assert.LessOrEqual(t, p.Lower, p.Upper)
		}
	}

	_, err = fitted.PredictHazard([]float64{24}, data.NumVehicles(), 0.95)
	assert.Error(t, err, "out-of-range vehicle index must be rejected")
}

func TestPredictHazard_NonPositiveTimes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MCMC fit in short mode")
	}

	obs := syntheticObservations(2, 20, 1.5, 100, 250, 3)
	data, err := Prepare(obs)
	require.NoError(t, err)

	cfg := mcmc.Config{Samples: 300, Tune: 300, Chains: 2, Seed: 3}
	fitted, err := Fit(context.Background(), data, cfg)
	require.NoError(t, err)

	points, err := fitted.PredictHazard([]float64{-1, 0, 10}, Population, 0.95)
	require.NoError(t, err)

	assert.Zero(t, points[0].Mean)
	assert.Zero(t, points[1].Mean)
	assert.Greater(t, points[2].Mean, 0.0)
}

func TestPredict_BeforeFit(t *testing.T) {
	var fitted *Fitted

	_, err := fitted.PredictMeanTimeToEvent(Population, 0.95)
	require.Error(t, err)

	var notFitted *inference.ModelNotFittedError
	assert.True(t, errors.As(err, &notFitted))

	_, err = (&Fitted{}).PredictHazard([]float64{24}, Population, 0.95)
	assert.True(t, errors.As(err, &notFitted))
}
