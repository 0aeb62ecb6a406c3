// Package resample computes importance/stratification weights for an
// imbalanced binary-labeled dataset, resamples training data under each
// weighting scheme, trains a detector, and scores how much each scheme
// improves rare-event detection over an unweighted baseline.
package resample

// Row is one labeled feature row. RareEvent is the rare-class label; its
// prevalence is expected to be far below 50%.
type Row struct {
	Features  []float64
	RareEvent bool
}

// Method names a weighting scheme.
type Method string

const (
	// Uniform assigns weight 1 to every row (baseline).
	Uniform Method = "uniform"
	// Stratified rescales so the weighted rare-event proportion matches a
	// configured target rate.
	Stratified Method = "stratified"
	// Importance weights rows by predicted rare-event probability relative
	// to the population rate; requires a fitted auxiliary classifier.
	Importance Method = "importance"
	// Adaptive blends stratified and importance weights equally, falling
	// back to stratified when no auxiliary classifier exists.
	Adaptive Method = "adaptive"
)

// AllMethods lists every weighting scheme in evaluation order; uniform comes
// first because it is the improvement baseline.
func AllMethods() []Method {
	return []Method{Uniform, Stratified, Importance, Adaptive}
}

// Classifier predicts rare-event probability from a feature vector. Both
// the auxiliary reweighting model and the detection model satisfy it.
type Classifier interface {
	Fit(x [][]float64, y []bool) error
	PredictProba(features []float64) float64
}

func countRare(rows []Row) int {
	n := 0
	for _, r := range rows {
		if r.RareEvent {
			n++
		}
	}
	return n
}

func featureMatrix(rows []Row) ([][]float64, []bool) {
	x := make([][]float64, len(rows))
	y := make([]bool, len(rows))
	for i, r := range rows {
		x[i] = r.Features
		y[i] = r.RareEvent
	}
	return x, y
}
