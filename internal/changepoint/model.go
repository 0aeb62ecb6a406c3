package changepoint

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fleetsight/fleetsight/internal/mcmc"
)

// poissonModel is the single change-point Poisson rate model:
//
//	tau          ~ DiscreteUniform(1, n-1)   change-point index
//	lambda_pre   ~ Gamma(2, rate 1)          events per unit exposure
//	hazard_ratio ~ Gamma(2, rate 0.5)        mean ~4x increase
//	lambda_post  = lambda_pre * hazard_ratio
//	events_i     ~ Poisson(exposure_i * (lambda_pre if i < tau else lambda_post))
//
// tau is sampled exclusively via the discrete Metropolis path; the rates via
// the continuous path.
type poissonModel struct {
	series *Series
}

const (
	idxLambdaPre = iota
	idxHazardRatio
	idxTau
)

func (m *poissonModel) Parameters() []mcmc.Parameter {
	n := m.series.Len()
	return []mcmc.Parameter{
		{Name: "lambda_pre", Kind: mcmc.PositiveContinuous, Init: 1},
		{Name: "hazard_ratio", Kind: mcmc.PositiveContinuous, Init: 2},
		{Name: "tau", Kind: mcmc.BoundedInteger, Init: float64(n / 2), Min: 1, Max: n - 1},
	}
}

func (m *poissonModel) LogDensity(x []float64) float64 {
	lambdaPre := x[idxLambdaPre]
	ratio := x[idxHazardRatio]
	tau := int(x[idxTau])
	lambdaPost := lambdaPre * ratio

	logp := distuv.Gamma{Alpha: 2, Beta: 1}.LogProb(lambdaPre)
	logp += distuv.Gamma{Alpha: 2, Beta: 0.5}.LogProb(ratio)
	// Uniform prior over tau's support contributes a constant.

	for i := range m.series.T {
		rate := lambdaPre
		if i >= tau {
			rate = lambdaPost
		}
		mu := rate * m.series.Exposure[i]
		logp += distuv.Poisson{Lambda: mu}.LogProb(m.series.Events[i])
	}
	return logp
}
