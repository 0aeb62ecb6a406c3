package survival

import (
	"context"
	"fmt"
	"math"

	"github.com/fleetsight/fleetsight/internal/inference"
	"github.com/fleetsight/fleetsight/internal/logging"
	"github.com/fleetsight/fleetsight/internal/mcmc"
)

// Population selects the population-level scale (lambda_mu draws) instead of
// a single vehicle in prediction calls.
const Population = -1

// Fitted holds the posterior sample set of a survival fit. Samples live in
// memory for the duration of one run; only derived summary rows are
// persisted.
type Fitted struct {
	Data    *PreparedData
	Samples *mcmc.Samples
	Config  mcmc.Config
}

// HazardPoint is the posterior hazard summary at one time point.
type HazardPoint struct {
	Time float64
	inference.Interval
}

// Fit draws posterior samples for the hierarchical Weibull model. Runtime is
// proportional to chains*(samples+tune)*n_vehicles.
func Fit(ctx context.Context, data *PreparedData, cfg mcmc.Config) (*Fitted, error) {
	logger := logging.GetLogger("survival")

	model := newWeibullModel(data)
	samples, err := mcmc.Run(ctx, model, cfg)
	if err != nil {
		return nil, fmt.Errorf("survival fit failed: %w", err)
	}

	fitted := &Fitted{Data: data, Samples: samples, Config: cfg}
	logger.InfoWithFields("survival fit complete",
		logging.Field("vehicles", data.NumVehicles()),
		logging.Field("observations", len(data.Times)),
		logging.Field("max_rhat", fmt.Sprintf("%.4f", samples.MaxRHat())),
	)
	return fitted, nil
}

// lambdaDraws returns the posterior scale draws for one vehicle, or the
// population-level draws when vehicle == Population.
func (f *Fitted) lambdaDraws(vehicle int) ([]float64, error) {
	if f == nil || f.Samples == nil {
		return nil, &inference.ModelNotFittedError{Model: "survival"}
	}
	if vehicle == Population {
		return f.Samples.Flat("lambda_mu"), nil
	}
	if vehicle < 0 || vehicle >= f.Data.NumVehicles() {
		return nil, fmt.Errorf("vehicle index %d out of range [0,%d)", vehicle, f.Data.NumVehicles())
	}
	return f.Samples.Flat(fmt.Sprintf("lambda_vehicle[%d]", vehicle)), nil
}

// PredictHazard evaluates the posterior hazard h(t) at each requested time
// point for every draw, returning the mean and a symmetric credible interval
// per point. Time points <= 0 are clamped to zero hazard.
func (f *Fitted) PredictHazard(timePoints []float64, vehicle int, mass float64) ([]HazardPoint, error) {
	lambdas, err := f.lambdaDraws(vehicle)
	if err != nil {
		return nil, err
	}
	alphas := f.Samples.Flat("alpha")

	out := make([]HazardPoint, len(timePoints))
	draws := make([]float64, len(alphas))
	for i, t := range timePoints {
		if t <= 0 {
			out[i] = HazardPoint{Time: t}
			continue
		}
		for j := range alphas {
			draws[j] = hazardRate(t, alphas[j], lambdas[j])
		}
		out[i] = HazardPoint{Time: t, Interval: inference.Summarize(draws, mass)}
	}
	return out, nil
}

// PredictMeanTimeToEvent returns lambda * Gamma(1 + 1/alpha) averaged over
// draws with the usual credible-interval convention.
func (f *Fitted) PredictMeanTimeToEvent(vehicle int, mass float64) (inference.Interval, error) {
	lambdas, err := f.lambdaDraws(vehicle)
	if err != nil {
		return inference.Interval{}, err
	}
	alphas := f.Samples.Flat("alpha")

	draws := make([]float64, len(alphas))
	for j := range alphas {
		draws[j] = lambdas[j] * math.Gamma(1+1/alphas[j])
	}
	return inference.Summarize(draws, mass), nil
}

// Diagnostics returns the per-parameter convergence table. Callers should
// treat MaxRHat >= 1.01 as non-convergence and surface it, never discard it
// silently.
func (f *Fitted) Diagnostics() ([]mcmc.ParamDiagnostics, error) {
	if f == nil || f.Samples == nil {
		return nil, &inference.ModelNotFittedError{Model: "survival"}
	}
	return f.Samples.Diagnostics(), nil
}

// hazardRate is the Weibull hazard (alpha/lambda)*(t/lambda)^(alpha-1).
func hazardRate(t, alpha, lambda float64) float64 {
	return (alpha / lambda) * math.Pow(t/lambda, alpha-1)
}
