// Package mcmc implements a generic Markov-chain Monte-Carlo engine for
// models declared as a log-joint-density over a tagged parameter vector.
//
// Continuous parameters are sampled with an adaptive random-walk Metropolis
// step, or a gradient-assisted (Langevin) step when the model provides a
// gradient. Discrete integer parameters use a symmetric integer random walk
// with the standard Metropolis ratio. The sampler itself has no per-model
// special-casing: everything it needs is in the parameter declarations.
package mcmc

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// ParamKind tags how a parameter is supported and therefore how it is
// proposed.
type ParamKind int

const (
	// Continuous is an unbounded real parameter.
	Continuous ParamKind = iota
	// PositiveContinuous is a strictly positive real parameter. The sampler
	// walks it on the log scale and applies the Jacobian correction, so the
	// model always sees natural-scale values.
	PositiveContinuous
	// BoundedInteger is an integer parameter with inclusive support
	// [Min, Max]. Proposed via symmetric integer random walk; gradient
	// information is never used for it.
	BoundedInteger
)

// Parameter declares one entry of the model's parameter vector.
type Parameter struct {
	Name string
	Kind ParamKind
	Init float64

	// Min and Max bound the support of BoundedInteger parameters.
	Min, Max int
}

// Model defines a target density for the sampler. LogDensity receives
// natural-scale parameter values in the order given by Parameters and
// returns the unnormalized log joint density. It must be safe for
// concurrent calls from independent chains.
type Model interface {
	Parameters() []Parameter
	LogDensity(x []float64) float64
}

// GradientModel is an optional extension; when implemented, continuous
// parameters use gradient-assisted proposals. Gradient returns the partial
// derivatives of LogDensity with respect to each natural-scale parameter.
// Entries for BoundedInteger parameters are ignored.
type GradientModel interface {
	Model
	Gradient(x []float64) []float64
}

// Config holds the sampling hyperparameters shared by every fit call.
type Config struct {
	Samples int    // post burn-in draws per chain
	Tune    int    // burn-in draws used for step-size adaptation
	Chains  int    // independent chains
	Seed    uint64 // base seed; each chain derives its own stream
}

// DefaultConfig returns the design defaults: samples=2000 tune=1000 chains=4.
func DefaultConfig() Config {
	return Config{Samples: 2000, Tune: 1000, Chains: 4, Seed: 42}
}

// Validate checks the hyperparameter invariants.
func (c Config) Validate() error {
	if c.Samples <= 0 {
		return fmt.Errorf("samples must be > 0, got %d", c.Samples)
	}
	if c.Tune < 0 {
		return fmt.Errorf("tune must be >= 0, got %d", c.Tune)
	}
	if c.Chains < 1 {
		return fmt.Errorf("chains must be >= 1, got %d", c.Chains)
	}
	return nil
}

// Acceptance-rate bands targeted during burn-in adaptation.
const (
	rwTargetLow    = 0.2
	rwTargetHigh   = 0.4
	malaTargetLow  = 0.6
	malaTargetHigh = 0.8
	adaptWindow    = 50
)

// Samples holds the post burn-in draws of every chain, indexed
// [chain][parameter][iteration].
type Samples struct {
	Params []Parameter
	Chains [][][]float64
}

// Flat returns all draws of the named parameter concatenated across chains.
func (s *Samples) Flat(name string) []float64 {
	idx := s.paramIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, 0, len(s.Chains)*len(s.Chains[0][idx]))
	for _, chain := range s.Chains {
		out = append(out, chain[idx]...)
	}
	return out
}

// ByChain returns the per-chain draws of the named parameter.
func (s *Samples) ByChain(name string) [][]float64 {
	idx := s.paramIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([][]float64, len(s.Chains))
	for i, chain := range s.Chains {
		out[i] = chain[idx]
	}
	return out
}

func (s *Samples) paramIndex(name string) int {
	for i, p := range s.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Run draws posterior samples for the model. Chains are independent and run
// in parallel; each derives its own RNG stream from cfg.Seed. The returned
// set never includes burn-in draws. Cancellation via ctx discards all
// partial chain state.
func Run(ctx context.Context, m Model, cfg Config) (*Samples, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sampler config: %w", err)
	}
	params := m.Parameters()
	if len(params) == 0 {
		return nil, fmt.Errorf("model declares no parameters")
	}

	result := &Samples{
		Params: params,
		Chains: make([][][]float64, cfg.Chains),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Chains; i++ {
		g.Go(func() error {
			// Widely spaced chain seeds so streams do not overlap in practice.
			seed := cfg.Seed + uint64(i)*0x9e3779b97f4a7c15
			draws, err := runChain(gctx, m, params, cfg, i, seed)
			if err != nil {
				return err
			}
			result.Chains[i] = draws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// chainState is the walker's position in transformed space, along with the
// cached natural-scale vector and log density.
type chainState struct {
	theta   []float64 // transformed coordinates
	natural []float64 // natural-scale coordinates
	logp    float64

	// lastProposalLogp is the density of the most recent proposal,
	// accepted or not, used for divergence accounting.
	lastProposalLogp float64
}

func runChain(ctx context.Context, m Model, params []Parameter, cfg Config, chainIdx int, seed uint64) ([][]float64, error) {
	rng := rand.New(rand.NewSource(seed))
	gm, hasGrad := m.(GradientModel)

	state := newChainState(params)
	state.logp = logDensityTransformed(m, params, state)
	if !isFinite(state.logp) {
		return nil, &DivergenceError{Chain: chainIdx, Reason: "non-finite log density at initial values"}
	}

	steps := make([]float64, len(params))
	for j, p := range params {
		if p.Kind == BoundedInteger {
			steps[j] = math.Max(1, float64(p.Max-p.Min)/10)
		} else {
			steps[j] = 0.5
		}
	}

	draws := make([][]float64, len(params))
	for j := range draws {
		draws[j] = make([]float64, 0, cfg.Samples)
	}

	var (
		accepted  = make([]int, len(params))
		attempted = make([]int, len(params))
		proposals int
		nonFinite int
	)

	total := cfg.Tune + cfg.Samples
	for iter := 0; iter < total; iter++ {
		if iter%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		tuning := iter < cfg.Tune
		for j, p := range params {
			proposals++
			attempted[j]++

			var ok bool
			if p.Kind == BoundedInteger {
				ok = stepInteger(m, params, state, j, steps[j], rng)
			} else if hasGrad {
				ok = stepLangevin(gm, params, state, j, steps[j], rng)
			} else {
				ok = stepRandomWalk(m, params, state, j, steps[j], rng)
			}
			if ok {
				accepted[j]++
			}
			if !isFinite(state.lastProposalLogp) {
				nonFinite++
			}

			if tuning && attempted[j]%adaptWindow == 0 {
				rate := float64(accepted[j]) / float64(attempted[j])
				steps[j] = adaptStep(p.Kind, hasGrad, steps[j], rate)
				accepted[j] = 0
				attempted[j] = 0
			}
		}

		if !tuning {
			for j := range params {
				draws[j] = append(draws[j], state.natural[j])
			}
		}
	}

	if nonFinite > proposals/2 {
		return nil, &DivergenceError{
			Chain:     chainIdx,
			NonFinite: nonFinite,
			Proposals: proposals,
			Reason:    "majority of proposals had non-finite log density",
		}
	}
	return draws, nil
}

func adaptStep(kind ParamKind, hasGrad bool, step, rate float64) float64 {
	low, high := rwTargetLow, rwTargetHigh
	if kind != BoundedInteger && hasGrad {
		low, high = malaTargetLow, malaTargetHigh
	}
	switch {
	case rate > high:
		step *= 1.2
	case rate < low:
		step *= 0.8
	}
	if kind == BoundedInteger && step < 1 {
		step = 1
	}
	return step
}

func newChainState(params []Parameter) *chainState {
	s := &chainState{
		theta:   make([]float64, len(params)),
		natural: make([]float64, len(params)),
	}
	for j, p := range params {
		switch p.Kind {
		case PositiveContinuous:
			init := p.Init
			if init <= 0 {
				init = 1
			}
			s.theta[j] = math.Log(init)
			s.natural[j] = init
		case BoundedInteger:
			init := math.Round(p.Init)
			if init < float64(p.Min) || init > float64(p.Max) {
				init = float64(p.Min+p.Max) / 2
				init = math.Round(init)
			}
			s.theta[j] = init
			s.natural[j] = init
		default:
			s.theta[j] = p.Init
			s.natural[j] = p.Init
		}
	}
	return s
}

// logDensityTransformed evaluates the model density at the state's natural
// coordinates plus the log-Jacobian of the positive-parameter transform.
func logDensityTransformed(m Model, params []Parameter, s *chainState) float64 {
	logp := m.LogDensity(s.natural)
	for j, p := range params {
		if p.Kind == PositiveContinuous {
			logp += s.theta[j] // log|dx/dy| with x = exp(y)
		}
	}
	return logp
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
