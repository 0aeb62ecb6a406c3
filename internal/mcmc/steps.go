package mcmc

import (
	"math"

	"golang.org/x/exp/rand"
)

// naturalOf maps a transformed coordinate back to the model's natural scale.
func naturalOf(p Parameter, theta float64) float64 {
	if p.Kind == PositiveContinuous {
		return math.Exp(theta)
	}
	return theta
}

// stepRandomWalk performs one adaptive random-walk Metropolis update of
// coordinate j. Returns true on acceptance.
func stepRandomWalk(m Model, params []Parameter, s *chainState, j int, step float64, rng *rand.Rand) bool {
	oldTheta, oldNat, oldLogp := s.theta[j], s.natural[j], s.logp

	s.theta[j] = oldTheta + step*rng.NormFloat64()
	s.natural[j] = naturalOf(params[j], s.theta[j])
	logp := logDensityTransformed(m, params, s)
	s.lastProposalLogp = logp

	if isFinite(logp) && math.Log(rng.Float64()) < logp-oldLogp {
		s.logp = logp
		return true
	}
	s.theta[j], s.natural[j], s.logp = oldTheta, oldNat, oldLogp
	return false
}

// stepLangevin performs one gradient-assisted (MALA) update of coordinate j
// in transformed space, with the asymmetric-proposal correction.
func stepLangevin(m GradientModel, params []Parameter, s *chainState, j int, step float64, rng *rand.Rand) bool {
	oldTheta, oldNat, oldLogp := s.theta[j], s.natural[j], s.logp

	gradFwd := transformedGrad(m, params, s, j)
	driftFwd := clampDrift(0.5*step*step*gradFwd, step)
	muFwd := oldTheta + driftFwd

	s.theta[j] = muFwd + step*rng.NormFloat64()
	s.natural[j] = naturalOf(params[j], s.theta[j])
	logp := logDensityTransformed(m, params, s)
	s.lastProposalLogp = logp
	if !isFinite(logp) {
		s.theta[j], s.natural[j], s.logp = oldTheta, oldNat, oldLogp
		return false
	}

	gradRev := transformedGrad(m, params, s, j)
	driftRev := clampDrift(0.5*step*step*gradRev, step)
	muRev := s.theta[j] + driftRev

	// Metropolis-Hastings correction for the asymmetric Langevin kernel.
	fwd := s.theta[j] - muFwd
	rev := oldTheta - muRev
	correction := (fwd*fwd - rev*rev) / (2 * step * step)

	if math.Log(rng.Float64()) < logp-oldLogp+correction {
		s.logp = logp
		return true
	}
	s.theta[j], s.natural[j], s.logp = oldTheta, oldNat, oldLogp
	return false
}

// stepInteger performs one symmetric integer random-walk Metropolis update
// of coordinate j. Proposals outside the support are rejected outright,
// which preserves the symmetry of the kernel.
func stepInteger(m Model, params []Parameter, s *chainState, j int, step float64, rng *rand.Rand) bool {
	oldTheta, oldLogp := s.theta[j], s.logp

	width := int(step)
	if width < 1 {
		width = 1
	}
	delta := 1 + rng.Intn(width)
	if rng.Intn(2) == 0 {
		delta = -delta
	}

	proposal := oldTheta + float64(delta)
	p := params[j]
	if proposal < float64(p.Min) || proposal > float64(p.Max) {
		s.lastProposalLogp = oldLogp
		return false
	}

	s.theta[j] = proposal
	s.natural[j] = proposal
	logp := logDensityTransformed(m, params, s)
	s.lastProposalLogp = logp

	if isFinite(logp) && math.Log(rng.Float64()) < logp-oldLogp {
		s.logp = logp
		return true
	}
	s.theta[j], s.natural[j], s.logp = oldTheta, oldTheta, oldLogp
	return false
}

// transformedGrad returns the gradient of the transformed-space density with
// respect to coordinate j: the chain-rule factor for the log transform plus
// the Jacobian derivative for positive parameters.
func transformedGrad(m GradientModel, params []Parameter, s *chainState, j int) float64 {
	grad := m.Gradient(s.natural)
	g := grad[j]
	if params[j].Kind == PositiveContinuous {
		g = g*s.natural[j] + 1
	}
	if !isFinite(g) {
		return 0
	}
	return g
}

// clampDrift caps the Langevin drift so a single wild gradient cannot throw
// the walker out of the typical set.
func clampDrift(drift, step float64) float64 {
	limit := 10 * step
	if drift > limit {
		return limit
	}
	if drift < -limit {
		return -limit
	}
	return drift
}
