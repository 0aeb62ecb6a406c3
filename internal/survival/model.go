package survival

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fleetsight/fleetsight/internal/mcmc"
)

// weibullModel is the hierarchical Weibull hazard model:
//
//	alpha_mu     ~ Normal(1.0, 0.5)
//	alpha_sigma  ~ HalfNormal(0.3)
//	lambda_mu    ~ Normal(100, 50), constrained positive
//	lambda_sigma ~ HalfNormal(20)
//	alpha        ~ LogNormal(alpha_mu, alpha_sigma)       shared shape
//	lambda_v     ~ Normal(lambda_mu, lambda_sigma), > 0   per-vehicle scale
//
// Likelihood per observation: log h(t) + log S(t) for events, log S(t) for
// censored rows, with h(t) = (alpha/lambda)*(t/lambda)^(alpha-1) and
// S(t) = exp(-(t/lambda)^alpha).
type weibullModel struct {
	data   *PreparedData
	params []mcmc.Parameter
}

// Fixed parameter-vector layout: four hyperparameters and the shared shape,
// then one scale per vehicle.
const (
	idxAlphaMu = iota
	idxAlphaSigma
	idxLambdaMu
	idxLambdaSigma
	idxAlpha
	idxLambdaVehicle // first per-vehicle scale
)

func newWeibullModel(data *PreparedData) *weibullModel {
	params := []mcmc.Parameter{
		{Name: "alpha_mu", Kind: mcmc.Continuous, Init: 1.0},
		{Name: "alpha_sigma", Kind: mcmc.PositiveContinuous, Init: 0.3},
		{Name: "lambda_mu", Kind: mcmc.PositiveContinuous, Init: 100},
		{Name: "lambda_sigma", Kind: mcmc.PositiveContinuous, Init: 20},
		{Name: "alpha", Kind: mcmc.PositiveContinuous, Init: 1.5},
	}
	for i := range data.VehicleIDs {
		params = append(params, mcmc.Parameter{
			Name: fmt.Sprintf("lambda_vehicle[%d]", i),
			Kind: mcmc.PositiveContinuous,
			Init: 100,
		})
	}
	return &weibullModel{data: data, params: params}
}

func (m *weibullModel) Parameters() []mcmc.Parameter {
	return m.params
}

func (m *weibullModel) LogDensity(x []float64) float64 {
	alphaMu := x[idxAlphaMu]
	alphaSigma := x[idxAlphaSigma]
	lambdaMu := x[idxLambdaMu]
	lambdaSigma := x[idxLambdaSigma]
	alpha := x[idxAlpha]

	logp := distuv.Normal{Mu: 1.0, Sigma: 0.5}.LogProb(alphaMu)
	logp += halfNormalLogProb(alphaSigma, 0.3)
	logp += distuv.Normal{Mu: 100, Sigma: 50}.LogProb(lambdaMu)
	logp += halfNormalLogProb(lambdaSigma, 20)
	logp += distuv.LogNormal{Mu: alphaMu, Sigma: alphaSigma}.LogProb(alpha)

	vehiclePrior := distuv.Normal{Mu: lambdaMu, Sigma: lambdaSigma}
	for v := 0; v < m.data.NumVehicles(); v++ {
		logp += vehiclePrior.LogProb(x[idxLambdaVehicle+v])
	}

	logAlpha := math.Log(alpha)
	for i, t := range m.data.Times {
		lambda := x[idxLambdaVehicle+m.data.VehicleIdx[i]]
		logZ := math.Log(t) - math.Log(lambda)
		logSurvival := -math.Exp(alpha * logZ) // -(t/lambda)^alpha
		logp += logSurvival
		if m.data.Events[i] {
			logp += logAlpha - math.Log(lambda) + (alpha-1)*logZ
		}
	}
	return logp
}

// halfNormalLogProb is the log density of |Normal(0, sigma)| at x > 0.
func halfNormalLogProb(x, sigma float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return math.Ln2 + distuv.Normal{Mu: 0, Sigma: sigma}.LogProb(x)
}
