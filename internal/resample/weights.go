package resample

import (
	"fmt"

	"github.com/fleetsight/fleetsight/internal/inference"
)

// DefaultTargetRate is the weighted rare-event proportion the stratified
// scheme aims for.
const DefaultTargetRate = 0.1

// Weighter computes sample weights for the four weighting schemes.
// RareEventRate is the estimated population prevalence supplied by the
// caller; it calibrates importance weights and is never re-derived from the
// sample.
type Weighter struct {
	RareEventRate float64
	TargetRate    float64

	aux Classifier
}

// NewWeighter creates a Weighter for the given population rare-event rate
// with the default stratified target rate.
func NewWeighter(rareEventRate float64) *Weighter {
	return &Weighter{RareEventRate: rareEventRate, TargetRate: DefaultTargetRate}
}

// FitAuxiliary trains the auxiliary rare-event probability model used by the
// importance and adaptive schemes.
func (w *Weighter) FitAuxiliary(rows []Row, clf Classifier) error {
	x, y := featureMatrix(rows)
	if err := clf.Fit(x, y); err != nil {
		return fmt.Errorf("auxiliary classifier fit failed: %w", err)
	}
	w.aux = clf
	return nil
}

// HasAuxiliary reports whether an auxiliary classifier has been fitted.
func (w *Weighter) HasAuxiliary() bool { return w.aux != nil }

// Weights computes per-row sample weights for the given method. All schemes
// return weights that are strictly positive and sum to the row count.
func (w *Weighter) Weights(rows []Row, method Method) ([]float64, error) {
	switch method {
	case Uniform:
		return uniformWeights(len(rows)), nil

	case Stratified:
		return w.stratifiedWeights(rows), nil

	case Importance:
		return w.importanceWeights(rows)

	case Adaptive:
		if w.aux == nil {
			return w.stratifiedWeights(rows), nil
		}
		stratified := w.stratifiedWeights(rows)
		importance, err := w.importanceWeights(rows)
		if err != nil {
			return nil, err
		}
		blended := make([]float64, len(rows))
		for i := range blended {
			blended[i] = 0.5*stratified[i] + 0.5*importance[i]
		}
		return blended, nil

	default:
		return nil, fmt.Errorf("unknown weighting method: %q", method)
	}
}

func uniformWeights(n int) []float64 {
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	return weights
}

// stratifiedWeights rescales so the weighted rare proportion equals the
// target rate. With no rare rows in the sample it falls back to uniform
// weights rather than dividing by zero.
func (w *Weighter) stratifiedWeights(rows []Row) []float64 {
	n := len(rows)
	target := w.TargetRate
	if target <= 0 || target >= 1 {
		target = DefaultTargetRate
	}

	rare := countRare(rows)
	if rare == 0 || rare == n {
		return uniformWeights(n)
	}
	observed := float64(rare) / float64(n)

	rareWeight := target / observed
	commonWeight := (1 - target) / (1 - observed)

	weights := make([]float64, n)
	for i, r := range rows {
		if r.RareEvent {
			weights[i] = rareWeight
		} else {
			weights[i] = commonWeight
		}
	}
	return renormalize(weights)
}

// importanceWeights weights each row by its predicted rare-event probability
// relative to the population rate.
func (w *Weighter) importanceWeights(rows []Row) ([]float64, error) {
	if w.aux == nil {
		return nil, &inference.ModelNotFittedError{Model: "resample auxiliary classifier"}
	}

	weights := make([]float64, len(rows))
	sum := 0.0
	for i, r := range rows {
		weights[i] = w.aux.PredictProba(r.Features) / w.RareEventRate
		sum += weights[i]
	}
	if sum == 0 {
		// Degenerate classifier output; uniform keeps weights positive.
		return uniformWeights(len(rows)), nil
	}
	return renormalize(weights), nil
}

// renormalize scales weights to sum to the row count, flooring each at a
// tiny positive value so every row keeps nonzero resampling mass.
func renormalize(weights []float64) []float64 {
	const floor = 1e-12

	sum := 0.0
	for i := range weights {
		if weights[i] < floor {
			weights[i] = floor
		}
		sum += weights[i]
	}
	scale := float64(len(weights)) / sum
	for i := range weights {
		weights[i] *= scale
	}
	return weights
}
