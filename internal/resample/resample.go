package resample

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// Resample draws n rows with replacement using the given method's weights as
// a categorical distribution over row indices. The seed is caller-owned;
// identical inputs and seed always return identical rows.
func (w *Weighter) Resample(rows []Row, method Method, n int, seed uint64) ([]Row, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot resample empty dataset")
	}
	if n <= 0 {
		n = len(rows)
	}

	weights, err := w.Weights(rows, method)
	if err != nil {
		return nil, err
	}

	total := 0.0
	cum := make([]float64, len(weights))
	for i, wt := range weights {
		total += wt
		cum[i] = total
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]Row, n)
	for i := range out {
		idx := searchCumulative(cum, rng.Float64()*total)
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		out[i] = rows[idx]
	}
	return out, nil
}
