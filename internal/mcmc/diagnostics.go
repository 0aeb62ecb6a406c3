package mcmc

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ParamDiagnostics summarizes convergence of one parameter across chains.
type ParamDiagnostics struct {
	Name   string
	Mean   float64
	StdDev float64
	RHat   float64 // potential scale reduction, target < 1.01
	ESS    float64 // effective sample size across all chains
}

// Diagnostics computes the per-parameter convergence table. RHat is the
// split potential-scale-reduction statistic; ESS is estimated from lag
// autocorrelations using Geyer's initial positive sequence.
func (s *Samples) Diagnostics() []ParamDiagnostics {
	out := make([]ParamDiagnostics, len(s.Params))
	for j, p := range s.Params {
		chains := make([][]float64, len(s.Chains))
		for i := range s.Chains {
			chains[i] = s.Chains[i][j]
		}
		flat := s.Flat(p.Name)
		out[j] = ParamDiagnostics{
			Name:   p.Name,
			Mean:   stat.Mean(flat, nil),
			StdDev: stat.StdDev(flat, nil),
			RHat:   splitRHat(chains),
			ESS:    effectiveSampleSize(chains),
		}
	}
	return out
}

// MaxRHat returns the worst potential-scale-reduction statistic across all
// parameters. Callers should treat values >= 1.01 as non-convergence.
func (s *Samples) MaxRHat() float64 {
	max := 0.0
	for _, d := range s.Diagnostics() {
		if d.RHat > max {
			max = d.RHat
		}
	}
	return max
}

// MinESS returns the smallest effective sample size across parameters.
func (s *Samples) MinESS() float64 {
	min := math.Inf(1)
	for _, d := range s.Diagnostics() {
		if d.ESS < min {
			min = d.ESS
		}
	}
	return min
}

// splitRHat computes the split-chain potential-scale-reduction statistic:
// each chain is halved, then within-chain variance W is compared to the
// between-chain variance B of the halves.
func splitRHat(chains [][]float64) float64 {
	var halves [][]float64
	for _, c := range chains {
		if len(c) < 4 {
			return math.NaN()
		}
		mid := len(c) / 2
		halves = append(halves, c[:mid], c[mid:mid*2])
	}

	n := float64(len(halves[0]))

	means := make([]float64, len(halves))
	vars := make([]float64, len(halves))
	for i, h := range halves {
		means[i] = stat.Mean(h, nil)
		vars[i] = stat.Variance(h, nil)
	}

	w := stat.Mean(vars, nil)
	b := n * stat.Variance(means, nil)

	if w == 0 {
		// All halves constant: identical constants across chains converged
		// trivially, otherwise the chains disagree completely.
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}

	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// effectiveSampleSize estimates ESS across chains from the averaged
// autocorrelation function, truncated at the first negative paired sum.
func effectiveSampleSize(chains [][]float64) float64 {
	m := len(chains)
	if m == 0 || len(chains[0]) == 0 {
		return 0
	}
	n := len(chains[0])
	total := float64(m * n)

	maxLag := n / 2
	if maxLag > 500 {
		maxLag = 500
	}

	// Average the per-chain autocorrelations.
	rho := make([]float64, maxLag)
	for _, c := range chains {
		mean := stat.Mean(c, nil)
		variance := stat.Variance(c, nil)
		if variance == 0 {
			continue
		}
		for lag := 1; lag < maxLag; lag++ {
			sum := 0.0
			for i := 0; i+lag < len(c); i++ {
				sum += (c[i] - mean) * (c[i+lag] - mean)
			}
			rho[lag] += sum / (float64(len(c)-lag) * variance)
		}
	}
	for lag := 1; lag < maxLag; lag++ {
		rho[lag] /= float64(m)
	}

	// Geyer initial positive sequence: accumulate paired sums while positive.
	sum := 0.0
	for lag := 1; lag+1 < maxLag; lag += 2 {
		pair := rho[lag] + rho[lag+1]
		if pair < 0 {
			break
		}
		sum += pair
	}

	ess := total / (1 + 2*sum)
	if ess > total {
		return total
	}
	return ess
}
