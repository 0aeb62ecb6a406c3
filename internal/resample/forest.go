package resample

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/fleetsight/fleetsight/internal/inference"
)

// ForestConfig configures the random-forest classifier used for both the
// auxiliary reweighting model and the detection model.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	Seed            uint64

	// ClassBalanced switches the per-tree bootstrap so that positives and
	// negatives contribute equal total probability regardless of prevalence.
	// Only the auxiliary reweighting model sets it; detection forests train
	// on a plain bootstrap so the class mix of the resampled rows reaches
	// them unchanged.
	ClassBalanced bool
}

// DefaultForestConfig mirrors the detector settings used throughout the
// evaluation: 100 depth-limited trees with a 20-row split minimum.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 100, MaxDepth: 10, MinSamplesSplit: 20, Seed: 42}
}

// RandomForest is a bagged ensemble of depth-limited CART trees. It
// implements Classifier.
type RandomForest struct {
	cfg       ForestConfig
	trees     []*treeNode
	nFeatures int
}

// NewRandomForest creates an unfitted forest.
func NewRandomForest(cfg ForestConfig) *RandomForest {
	if cfg.Trees <= 0 {
		cfg.Trees = DefaultForestConfig().Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultForestConfig().MaxDepth
	}
	if cfg.MinSamplesSplit <= 0 {
		cfg.MinSamplesSplit = DefaultForestConfig().MinSamplesSplit
	}
	return &RandomForest{cfg: cfg}
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode

	leaf bool
	prob float64 // weighted positive fraction at the leaf
}

// Fit trains the forest. Each tree sees a bootstrap sample of the rows
// (plain uniform, or class-balanced when configured) and considers a random
// sqrt(d) feature subset per split.
func (f *RandomForest) Fit(x [][]float64, y []bool) error {
	if len(x) == 0 {
		return fmt.Errorf("cannot fit forest on empty dataset")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows (%d) and labels (%d) differ", len(x), len(y))
	}

	f.nFeatures = len(x[0])
	rng := rand.New(rand.NewSource(f.cfg.Seed))

	var cum []float64
	if f.cfg.ClassBalanced {
		cum = cumulative(balancedProbabilities(y))
	}

	f.trees = make([]*treeNode, f.cfg.Trees)
	indices := make([]int, len(x))
	for t := range f.trees {
		for i := range indices {
			if cum != nil {
				indices[i] = searchCumulative(cum, rng.Float64())
			} else {
				indices[i] = rng.Intn(len(x))
			}
		}
		f.trees[t] = f.growTree(x, y, indices, 0, rng)
	}
	return nil
}

// PredictProba returns the forest-averaged rare-event probability.
func (f *RandomForest) PredictProba(features []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, tree := range f.trees {
		sum += tree.predict(features)
	}
	return sum / float64(len(f.trees))
}

// Fitted reports whether Fit has completed.
func (f *RandomForest) Fitted() bool { return len(f.trees) > 0 }

// requireFitted returns the taxonomy error when prediction happens before fit.
func (f *RandomForest) requireFitted() error {
	if !f.Fitted() {
		return &inference.ModelNotFittedError{Model: "random forest"}
	}
	return nil
}

// Predict classifies a single row at the given probability threshold.
func (f *RandomForest) Predict(features []float64, threshold float64) (bool, error) {
	if err := f.requireFitted(); err != nil {
		return false, err
	}
	return f.PredictProba(features) >= threshold, nil
}

func (t *treeNode) predict(features []float64) float64 {
	for !t.leaf {
		if features[t.feature] <= t.threshold {
			t = t.left
		} else {
			t = t.right
		}
	}
	return t.prob
}

func (f *RandomForest) growTree(x [][]float64, y []bool, indices []int, depth int, rng *rand.Rand) *treeNode {
	pos := 0
	for _, i := range indices {
		if y[i] {
			pos++
		}
	}
	prob := float64(pos) / float64(len(indices))

	if depth >= f.cfg.MaxDepth || len(indices) < f.cfg.MinSamplesSplit || pos == 0 || pos == len(indices) {
		return &treeNode{leaf: true, prob: prob}
	}

	feature, threshold, ok := f.bestSplit(x, y, indices, rng)
	if !ok {
		return &treeNode{leaf: true, prob: prob}
	}

	var left, right []int
	for _, i := range indices {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &treeNode{leaf: true, prob: prob}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      f.growTree(x, y, left, depth+1, rng),
		right:     f.growTree(x, y, right, depth+1, rng),
	}
}

// bestSplit scans a random feature subset and candidate thresholds drawn
// from the node's value quantiles, minimizing weighted Gini impurity.
func (f *RandomForest) bestSplit(x [][]float64, y []bool, indices []int, rng *rand.Rand) (int, float64, bool) {
	mtry := int(math.Ceil(math.Sqrt(float64(f.nFeatures))))
	features := rng.Perm(f.nFeatures)[:mtry]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	values := make([]float64, len(indices))
	for _, feature := range features {
		for i, idx := range indices {
			values[i] = x[idx][feature]
		}
		sort.Float64s(values)

		for _, threshold := range candidateThresholds(values) {
			gini := splitGini(x, y, indices, feature, threshold)
			if gini < bestGini {
				bestGini = gini
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// candidateThresholds picks up to ten midpoints spread across the sorted
// value range, skipping degenerate (constant) spans.
func candidateThresholds(sorted []float64) []float64 {
	n := len(sorted)
	if n < 2 || sorted[0] == sorted[n-1] {
		return nil
	}
	var out []float64
	for k := 1; k <= 10; k++ {
		i := k * (n - 1) / 11
		if i+1 >= n || sorted[i] == sorted[i+1] {
			continue
		}
		out = append(out, (sorted[i]+sorted[i+1])/2)
	}
	return out
}

func splitGini(x [][]float64, y []bool, indices []int, feature int, threshold float64) float64 {
	var leftN, leftPos, rightN, rightPos float64
	for _, i := range indices {
		if x[i][feature] <= threshold {
			leftN++
			if y[i] {
				leftPos++
			}
		} else {
			rightN++
			if y[i] {
				rightPos++
			}
		}
	}
	if leftN == 0 || rightN == 0 {
		return math.Inf(1)
	}
	total := leftN + rightN
	return leftN/total*gini(leftPos, leftN) + rightN/total*gini(rightPos, rightN)
}

func gini(pos, n float64) float64 {
	p := pos / n
	return 2 * p * (1 - p)
}

func balancedProbabilities(y []bool) []float64 {
	pos := 0
	for _, v := range y {
		if v {
			pos++
		}
	}
	neg := len(y) - pos

	probs := make([]float64, len(y))
	for i, v := range y {
		switch {
		case pos == 0 || neg == 0:
			probs[i] = 1 / float64(len(y))
		case v:
			probs[i] = 0.5 / float64(pos)
		default:
			probs[i] = 0.5 / float64(neg)
		}
	}
	return probs
}

func cumulative(probs []float64) []float64 {
	cum := make([]float64, len(probs))
	sum := 0.0
	for i, p := range probs {
		sum += p
		cum[i] = sum
	}
	// Guard the tail against floating-point shortfall.
	cum[len(cum)-1] = math.Max(cum[len(cum)-1], 1)
	return cum
}

func searchCumulative(cum []float64, u float64) int {
	return sort.SearchFloat64s(cum, u)
}
