package resample

import (
	"fmt"
	"math"
	"sort"

	"github.com/fleetsight/fleetsight/internal/logging"
)

// EvalConfig controls a single evaluation pass over the weighting schemes.
type EvalConfig struct {
	Methods []Method // zero value means all four schemes

	// ResampleN is the resampled training-set size; zero means the training
	// set size.
	ResampleN int

	// Threshold is the detection probability cutoff; zero means 0.5.
	Threshold float64

	// HoursPerRow converts the first-detection row index into the MTTD
	// proxy; zero means the one-row-equals-one-day convention (24 h).
	HoursPerRow float64

	Forest ForestConfig
	Seed   uint64
}

func (c EvalConfig) withDefaults() EvalConfig {
	if len(c.Methods) == 0 {
		c.Methods = AllMethods()
	}
	if c.Threshold == 0 {
		c.Threshold = 0.5
	}
	if c.HoursPerRow == 0 {
		c.HoursPerRow = 24
	}
	if c.Forest.Trees == 0 {
		c.Forest = DefaultForestConfig()
	}
	return c
}

// MethodResult scores one weighting scheme on the held-out test set.
type MethodResult struct {
	Method            Method
	Sensitivity       float64
	Specificity       float64
	Precision         float64
	FalsePositiveRate float64
	AUC               float64
	MTTDHours         float64 // +Inf when no true positive is detected
	TP, FP, TN, FN    int

	// Filled by RunExperiment relative to the uniform baseline.
	SensitivityImprovementPct float64
	MTTDImprovementPct        float64
	PValue                    float64
}

// Evaluate resamples the training set under each method, fits a detector on
// the resampled data, and scores the untouched test set.
func (w *Weighter) Evaluate(train, test []Row, cfg EvalConfig) ([]MethodResult, error) {
	results, _, err := w.evaluateWithPredictions(train, test, cfg)
	return results, err
}

// evaluateWithPredictions additionally returns each method's per-row test
// predictions, which RunExperiment needs for the bootstrap significance
// test.
func (w *Weighter) evaluateWithPredictions(train, test []Row, cfg EvalConfig) ([]MethodResult, map[Method][]bool, error) {
	cfg = cfg.withDefaults()
	logger := logging.GetLogger("resample")

	if len(test) == 0 {
		return nil, nil, fmt.Errorf("empty test set")
	}

	results := make([]MethodResult, 0, len(cfg.Methods))
	predictions := make(map[Method][]bool, len(cfg.Methods))

	for i, method := range cfg.Methods {
		resampled, err := w.Resample(train, method, cfg.ResampleN, cfg.Seed+uint64(i))
		if err != nil {
			return nil, nil, fmt.Errorf("resampling for %s failed: %w", method, err)
		}

		// The detector must see the resampled class mix unchanged, so that
		// any imbalance correction in its scores comes from the weighting
		// scheme under evaluation, never from the detector itself.
		forestCfg := cfg.Forest
		forestCfg.Seed = cfg.Seed + uint64(i)*101
		forestCfg.ClassBalanced = false
		detector := NewRandomForest(forestCfg)
		x, y := featureMatrix(resampled)
		if err := detector.Fit(x, y); err != nil {
			return nil, nil, fmt.Errorf("detector fit for %s failed: %w", method, err)
		}

		result, preds := scoreTestSet(method, detector, test, cfg)
		results = append(results, result)
		predictions[method] = preds

		logger.InfoWithFields("method evaluated",
			logging.Field("method", string(method)),
			logging.Field("sensitivity", fmt.Sprintf("%.3f", result.Sensitivity)),
			logging.Field("fpr", fmt.Sprintf("%.3f", result.FalsePositiveRate)),
		)
	}
	return results, predictions, nil
}

func scoreTestSet(method Method, detector *RandomForest, test []Row, cfg EvalConfig) (MethodResult, []bool) {
	scores := make([]float64, len(test))
	preds := make([]bool, len(test))
	labels := make([]bool, len(test))
	for i, row := range test {
		scores[i] = detector.PredictProba(row.Features)
		preds[i] = scores[i] >= cfg.Threshold
		labels[i] = row.RareEvent
	}

	result := MethodResult{Method: method}
	for i := range test {
		switch {
		case labels[i] && preds[i]:
			result.TP++
		case labels[i] && !preds[i]:
			result.FN++
		case !labels[i] && preds[i]:
			result.FP++
		default:
			result.TN++
		}
	}

	result.Sensitivity = safeRatio(result.TP, result.TP+result.FN)
	result.Specificity = safeRatio(result.TN, result.TN+result.FP)
	result.Precision = safeRatio(result.TP, result.TP+result.FP)
	result.FalsePositiveRate = safeRatio(result.FP, result.FP+result.TN)
	result.AUC = rankAUC(scores, labels)
	result.MTTDHours = mttdProxy(labels, preds, cfg.HoursPerRow)
	return result, preds
}

func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// mttdProxy is the index of the first row where both true label and
// prediction are positive, scaled to hours. With no detected true positive
// the MTTD is unbounded, reported as +Inf rather than zero.
func mttdProxy(labels, preds []bool, hoursPerRow float64) float64 {
	for i := range labels {
		if labels[i] && preds[i] {
			return float64(i) * hoursPerRow
		}
	}
	return math.Inf(1)
}

// rankAUC computes ROC-AUC as the Mann-Whitney statistic built from average
// ranks, which handles tied scores.
func rankAUC(scores []float64, labels []bool) float64 {
	n := len(scores)
	pos, neg := 0, 0
	for _, l := range labels {
		if l {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && scores[order[j]] == scores[order[i]] {
			j++
		}
		// Average rank across the tie group, 1-based.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	posRankSum := 0.0
	for i, l := range labels {
		if l {
			posRankSum += ranks[i]
		}
	}
	u := posRankSum - float64(pos)*float64(pos+1)/2
	return u / (float64(pos) * float64(neg))
}
