package inference

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Interval is a posterior summary: the mean of the draws plus a symmetric
// credible interval computed from posterior sample quantiles.
type Interval struct {
	Mean  float64
	Lower float64
	Upper float64
}

// DefaultCredibleMass is the credible-interval mass used when callers do not
// override it.
const DefaultCredibleMass = 0.95

// Summarize computes the mean and a symmetric credible interval containing
// the given posterior mass. Draws are not modified.
func Summarize(draws []float64, mass float64) Interval {
	if len(draws) == 0 {
		return Interval{}
	}
	if mass <= 0 || mass >= 1 {
		mass = DefaultCredibleMass
	}

	sorted := make([]float64, len(draws))
	copy(sorted, draws)
	sort.Float64s(sorted)

	tail := (1 - mass) / 2
	return Interval{
		Mean:  stat.Mean(sorted, nil),
		Lower: stat.Quantile(tail, stat.Empirical, sorted, nil),
		Upper: stat.Quantile(1-tail, stat.Empirical, sorted, nil),
	}
}
