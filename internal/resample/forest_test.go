package resample

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsight/fleetsight/internal/inference"
)

func TestForest_LearnsSeparableData(t *testing.T) {
	rows := imbalancedRows(1000, 50, 30)
	x, y := featureMatrix(rows)

	forest := NewRandomForest(ForestConfig{Trees: 50, MaxDepth: 6, MinSamplesSplit: 10, Seed: 1})
	require.NoError(t, forest.Fit(x, y))
	require.True(t, forest.Fitted())

	// Well inside each class cluster.
	rareProb := forest.PredictProba([]float64{180, 0.5})
	commonProb := forest.PredictProba([]float64{100, 0.5})

	assert.Greater(t, rareProb, 0.7)
	assert.Less(t, commonProb, 0.3)

	pred, err := forest.Predict([]float64{180, 0.5}, 0.5)
	require.NoError(t, err)
	assert.True(t, pred)
}

func TestForest_DeterministicWithSeed(t *testing.T) {
	rows := imbalancedRows(400, 20, 31)
	x, y := featureMatrix(rows)

	a := NewRandomForest(ForestConfig{Trees: 20, MaxDepth: 5, MinSamplesSplit: 10, Seed: 7})
	require.NoError(t, a.Fit(x, y))
	b := NewRandomForest(ForestConfig{Trees: 20, MaxDepth: 5, MinSamplesSplit: 10, Seed: 7})
	require.NoError(t, b.Fit(x, y))

	probe := []float64{150, 0.5}
	assert.Equal(t, a.PredictProba(probe), b.PredictProba(probe))
}

func TestForest_FitValidation(t *testing.T) {
	forest := NewRandomForest(DefaultForestConfig())

	assert.Error(t, forest.Fit(nil, nil))
	assert.Error(t, forest.Fit([][]float64{{1}}, []bool{true, false}))
}

func TestForest_PredictBeforeFit(t *testing.T) {
	forest := NewRandomForest(DefaultForestConfig())

	_, err := forest.Predict([]float64{1}, 0.5)
	require.Error(t, err)

	var notFitted *inference.ModelNotFittedError
	assert.True(t, errors.As(err, &notFitted))
}

func TestForest_SingleClassData(t *testing.T) {
	// All-negative training data must fit and predict probability zero.
	x := make([][]float64, 50)
	y := make([]bool, 50)
	for i := range x {
		x[i] = []float64{float64(i), float64(i % 7)}
	}

	forest := NewRandomForest(ForestConfig{Trees: 10, MaxDepth: 3, MinSamplesSplit: 5, Seed: 2})
	require.NoError(t, forest.Fit(x, y))
	assert.Zero(t, forest.PredictProba([]float64{25, 3}))
}

func TestForest_ClassBalancedBootstrap(t *testing.T) {
	// At 2% prevalence with overlapping classes, a plain bootstrap keeps
	// the rare cluster's center below the 0.5 threshold while the balanced
	// bootstrap lifts it above. The default must be the plain bootstrap.
	rows := overlappingRows(3000, 60, 17)
	x, y := featureMatrix(rows)

	cfg := ForestConfig{Trees: 40, MaxDepth: 6, MinSamplesSplit: 10, Seed: 3}
	plain := NewRandomForest(cfg)
	require.NoError(t, plain.Fit(x, y))

	cfg.ClassBalanced = true
	balanced := NewRandomForest(cfg)
	require.NoError(t, balanced.Fit(x, y))

	center := []float64{150, 0.5}
	plainProb := plain.PredictProba(center)
	balancedProb := balanced.PredictProba(center)

	assert.Less(t, plainProb, 0.5)
	assert.Greater(t, balancedProb, 0.5)
	assert.Greater(t, balancedProb, plainProb)
}

func TestDefaultForestConfig(t *testing.T) {
	cfg := DefaultForestConfig()
	assert.Equal(t, 100, cfg.Trees)
	assert.Equal(t, 10, cfg.MaxDepth)
	assert.Equal(t, 20, cfg.MinSamplesSplit)
}
