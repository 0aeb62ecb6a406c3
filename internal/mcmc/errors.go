package mcmc

import "fmt"

// DivergenceError indicates numerical failure during sampling: a chain could
// not produce finite log densities for the majority of its proposals, or the
// initial values already had non-finite density. Callers should retry once
// with a larger tune phase and alert if it recurs; the error must never be
// swallowed in favor of degenerate samples.
type DivergenceError struct {
	Chain     int
	NonFinite int
	Proposals int
	Reason    string
}

func (e *DivergenceError) Error() string {
	if e.Proposals > 0 {
		return fmt.Sprintf("sampler divergence in chain %d: %s (%d/%d non-finite proposals)",
			e.Chain, e.Reason, e.NonFinite, e.Proposals)
	}
	return fmt.Sprintf("sampler divergence in chain %d: %s", e.Chain, e.Reason)
}
