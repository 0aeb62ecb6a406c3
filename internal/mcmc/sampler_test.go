package mcmc

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// standardNormal is a unit test target with known posterior moments.
type standardNormal struct{}

func (standardNormal) Parameters() []Parameter {
	return []Parameter{{Name: "x", Kind: Continuous, Init: 0}}
}

func (standardNormal) LogDensity(x []float64) float64 {
	return -0.5 * x[0] * x[0]
}

// gradNormal adds the analytic gradient so the Langevin path is exercised.
type gradNormal struct{ standardNormal }

func (gradNormal) Gradient(x []float64) []float64 {
	return []float64{-x[0]}
}

// exponentialTarget has a strictly positive parameter with mean 1.
type exponentialTarget struct{}

func (exponentialTarget) Parameters() []Parameter {
	return []Parameter{{Name: "rate", Kind: PositiveContinuous, Init: 1}}
}

func (exponentialTarget) LogDensity(x []float64) float64 {
	return -x[0]
}

// flatInteger is a uniform density over the integer support [1, 9].
type flatInteger struct{}

func (flatInteger) Parameters() []Parameter {
	return []Parameter{{Name: "tau", Kind: BoundedInteger, Init: 5, Min: 1, Max: 9}}
}

func (flatInteger) LogDensity(x []float64) float64 { return 0 }

// brokenModel is finite at the initial point and nowhere else.
type brokenModel struct{}

func (brokenModel) Parameters() []Parameter {
	return []Parameter{{Name: "x", Kind: Continuous, Init: 0}}
}

func (brokenModel) LogDensity(x []float64) float64 {
	if x[0] == 0 {
		return 0
	}
	return math.NaN()
}

// nanModel is non-finite everywhere, including the initial point.
type nanModel struct{}

func (nanModel) Parameters() []Parameter {
	return []Parameter{{Name: "x", Kind: Continuous, Init: 0}}
}

func (nanModel) LogDensity(x []float64) float64 { return math.NaN() }

func TestRun_StandardNormalRecovery(t *testing.T) {
	cfg := Config{Samples: 2000, Tune: 1000, Chains: 4, Seed: 7}
	samples, err := Run(context.Background(), standardNormal{}, cfg)
	require.NoError(t, err)

	diags := samples.Diagnostics()
	require.Len(t, diags, 1)

	assert.InDelta(t, 0.0, diags[0].Mean, 0.1)
	assert.InDelta(t, 1.0, diags[0].StdDev, 0.15)
	assert.Less(t, diags[0].RHat, 1.05)
	assert.Greater(t, diags[0].ESS, 100.0)
}

func TestRun_GradientAssistedRecovery(t *testing.T) {
	cfg := Config{Samples: 2000, Tune: 1000, Chains: 4, Seed: 11}
	samples, err := Run(context.Background(), gradNormal{}, cfg)
	require.NoError(t, err)

	diags := samples.Diagnostics()
	assert.InDelta(t, 0.0, diags[0].Mean, 0.1)
	assert.InDelta(t, 1.0, diags[0].StdDev, 0.15)
	assert.Less(t, samples.MaxRHat(), 1.05)
}

func TestRun_PositiveParameterStaysPositive(t *testing.T) {
	cfg := Config{Samples: 3000, Tune: 1000, Chains: 4, Seed: 13}
	samples, err := Run(context.Background(), exponentialTarget{}, cfg)
	require.NoError(t, err)

	draws := samples.Flat("rate")
	require.NotEmpty(t, draws)
	for _, d := range draws {
		require.Greater(t, d, 0.0)
	}

	mean := 0.0
	for _, d := range draws {
		mean += d
	}
	mean /= float64(len(draws))
	assert.InDelta(t, 1.0, mean, 0.2)
}

func TestRun_IntegerParameterStaysInSupport(t *testing.T) {
	cfg := Config{Samples: 1000, Tune: 200, Chains: 2, Seed: 3}
	samples, err := Run(context.Background(), flatInteger{}, cfg)
	require.NoError(t, err)

	for _, d := range samples.Flat("tau") {
		assert.GreaterOrEqual(t, d, 1.0)
		assert.LessOrEqual(t, d, 9.0)
		assert.Equal(t, math.Trunc(d), d, "integer draws must not be fractional")
	}
}

func TestRun_SameSeedSameDraws(t *testing.T) {
	cfg := Config{Samples: 500, Tune: 200, Chains: 2, Seed: 99}

	a, err := Run(context.Background(), standardNormal{}, cfg)
	require.NoError(t, err)
	b, err := Run(context.Background(), standardNormal{}, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.Flat("x"), b.Flat("x"))
}

func TestRun_DivergentInitialValues(t *testing.T) {
	cfg := Config{Samples: 100, Tune: 50, Chains: 2, Seed: 1}
	_, err := Run(context.Background(), nanModel{}, cfg)
	require.Error(t, err)

	var divErr *DivergenceError
	require.True(t, errors.As(err, &divErr))
	assert.Contains(t, divErr.Error(), "initial values")
}

func TestRun_MajorityNonFiniteProposals(t *testing.T) {
	cfg := Config{Samples: 200, Tune: 100, Chains: 2, Seed: 1}
	_, err := Run(context.Background(), brokenModel{}, cfg)
	require.Error(t, err)

	var divErr *DivergenceError
	require.True(t, errors.As(err, &divErr))
	assert.Greater(t, divErr.NonFinite, divErr.Proposals/2)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{Samples: 5000, Tune: 1000, Chains: 2, Seed: 1}
	_, err := Run(ctx, standardNormal{}, cfg)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero samples", Config{Samples: 0, Tune: 10, Chains: 2}, true},
		{"negative tune", Config{Samples: 10, Tune: -1, Chains: 2}, true},
		{"zero chains", Config{Samples: 10, Tune: 10, Chains: 0}, true},
		{"single chain ok", Config{Samples: 10, Tune: 0, Chains: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSamples_FlatUnknownParam(t *testing.T) {
	s := &Samples{
		Params: []Parameter{{Name: "x"}},
		Chains: [][][]float64{{{1, 2, 3}}},
	}
	assert.Nil(t, s.Flat("missing"))
	assert.Nil(t, s.ByChain("missing"))
	assert.Equal(t, []float64{1, 2, 3}, s.Flat("x"))
}
