package results

import (
	"fmt"
	"strconv"
	"time"
)

// Column orders below are a stable contract with downstream consumers; only
// ever append, never reorder or rename.

var survivalHeader = []string{
	"model_run_id", "model_run_timestamp", "subject_id", "date_key",
	"prediction_horizon_hours",
	"baseline_hazard_rate", "hazard_rate_lower_ci", "hazard_rate_upper_ci",
	"predicted_time_to_event_hours", "predicted_time_lower_ci", "predicted_time_upper_ci",
	"convergence_flag", "rhat_max", "effective_sample_size",
	"model_version", "hyperparameters",
}

var changepointHeader = []string{
	"model_run_id", "model_run_timestamp", "subject_id", "date_key",
	"changepoint_detected", "changepoint_timestamp", "changepoint_index",
	"changepoint_probability", "pre_change_hazard_rate", "post_change_hazard_rate",
	"hazard_ratio", "hazard_ratio_lower_ci", "hazard_ratio_upper_ci",
	"mttd_hours", "convergence_flag", "rhat_max",
	"model_version", "hyperparameters",
}

var experimentHeader = []string{
	"experiment_id", "experiment_timestamp", "sampling_method",
	"rare_event_rate", "sample_size",
	"detection_sensitivity", "specificity", "precision", "false_positive_rate",
	"auc", "mttd_hours", "sensitivity_improvement_pct", "mttd_improvement_pct",
	"p_value", "tp", "fp", "tn", "fn",
	"model_version", "experiment_config",
}

func (r SurvivalRecord) row() []string {
	return []string{
		r.RunID, formatTime(r.RunTimestamp), r.SubjectID, r.DateKey,
		formatFloat(r.PredictionHorizonHours),
		formatFloat(r.BaselineHazardRate), formatFloat(r.HazardRateLowerCI), formatFloat(r.HazardRateUpperCI),
		formatFloat(r.PredictedTimeHours), formatFloat(r.PredictedTimeLowerCI), formatFloat(r.PredictedTimeUpperCI),
		formatBool(r.ConvergenceFlag), formatFloat(r.MaxRHat), formatFloat(r.EffectiveSampleSize),
		r.ModelVersion, r.HyperparametersJSON,
	}
}

func (r ChangepointRecord) row() []string {
	return []string{
		r.RunID, formatTime(r.RunTimestamp), r.SubjectID, r.DateKey,
		formatBool(r.Detected), r.ChangepointTimestamp, formatInt(r.ChangepointIndex),
		formatFloat(r.ChangepointProbability), formatFloat(r.PreChangeHazardRate), formatFloat(r.PostChangeHazardRate),
		formatFloat(r.HazardRatio), formatFloat(r.HazardRatioLowerCI), formatFloat(r.HazardRatioUpperCI),
		formatFloat(r.MTTDHours), formatBool(r.ConvergenceFlag), formatFloat(r.MaxRHat),
		r.ModelVersion, r.HyperparametersJSON,
	}
}

func (r ExperimentRecord) row() []string {
	return []string{
		r.ExperimentID, formatTime(r.ExperimentTimestamp), r.SamplingMethod,
		formatFloat(r.RareEventRate), formatInt(r.SampleSize),
		formatFloat(r.Sensitivity), formatFloat(r.Specificity), formatFloat(r.Precision), formatFloat(r.FalsePositiveRate),
		formatFloat(r.AUC), formatFloat(r.MTTDHours), formatFloat(r.SensitivityImprovementPct), formatFloat(r.MTTDImprovementPct),
		formatFloat(r.PValue), formatInt(r.TP), formatInt(r.FP), formatInt(r.TN), formatInt(r.FN),
		r.ModelVersion, r.ConfigJSON,
	}
}

// rowParser walks a CSV row left to right, capturing the first parse error.
type rowParser struct {
	row []string
	pos int
	err error
}

func (p *rowParser) next() string {
	v := p.row[p.pos]
	p.pos++
	return v
}

func (p *rowParser) float() float64 {
	v := p.next()
	if p.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("column %d: %w", p.pos, err)
	}
	return f
}

func (p *rowParser) boolean() bool {
	v := p.next()
	if p.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("column %d: %w", p.pos, err)
	}
	return b
}

func (p *rowParser) integer() int {
	v := p.next()
	if p.err != nil {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("column %d: %w", p.pos, err)
	}
	return i
}

func (p *rowParser) timestamp() time.Time {
	v := p.next()
	if p.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		p.err = fmt.Errorf("column %d: %w", p.pos, err)
	}
	return t
}

func parseSurvivalRow(row []string) (SurvivalRecord, error) {
	p := &rowParser{row: row}
	r := SurvivalRecord{
		RunID:                  p.next(),
		RunTimestamp:           p.timestamp(),
		SubjectID:              p.next(),
		DateKey:                p.next(),
		PredictionHorizonHours: p.float(),
		BaselineHazardRate:     p.float(),
		HazardRateLowerCI:      p.float(),
		HazardRateUpperCI:      p.float(),
		PredictedTimeHours:     p.float(),
		PredictedTimeLowerCI:   p.float(),
		PredictedTimeUpperCI:   p.float(),
		ConvergenceFlag:        p.boolean(),
		MaxRHat:                p.float(),
		EffectiveSampleSize:    p.float(),
		ModelVersion:           p.next(),
		HyperparametersJSON:    p.next(),
	}
	return r, p.err
}

func parseChangepointRow(row []string) (ChangepointRecord, error) {
	p := &rowParser{row: row}
	r := ChangepointRecord{
		RunID:                  p.next(),
		RunTimestamp:           p.timestamp(),
		SubjectID:              p.next(),
		DateKey:                p.next(),
		Detected:               p.boolean(),
		ChangepointTimestamp:   p.next(),
		ChangepointIndex:       p.integer(),
		ChangepointProbability: p.float(),
		PreChangeHazardRate:    p.float(),
		PostChangeHazardRate:   p.float(),
		HazardRatio:            p.float(),
		HazardRatioLowerCI:     p.float(),
		HazardRatioUpperCI:     p.float(),
		MTTDHours:              p.float(),
		ConvergenceFlag:        p.boolean(),
		MaxRHat:                p.float(),
		ModelVersion:           p.next(),
		HyperparametersJSON:    p.next(),
	}
	return r, p.err
}

func parseExperimentRow(row []string) (ExperimentRecord, error) {
	p := &rowParser{row: row}
	r := ExperimentRecord{
		ExperimentID:              p.next(),
		ExperimentTimestamp:       p.timestamp(),
		SamplingMethod:            p.next(),
		RareEventRate:             p.float(),
		SampleSize:                p.integer(),
		Sensitivity:               p.float(),
		Specificity:               p.float(),
		Precision:                 p.float(),
		FalsePositiveRate:         p.float(),
		AUC:                       p.float(),
		MTTDHours:                 p.float(),
		SensitivityImprovementPct: p.float(),
		MTTDImprovementPct:        p.float(),
		PValue:                    p.float(),
		TP:                        p.integer(),
		FP:                        p.integer(),
		TN:                        p.integer(),
		FN:                        p.integer(),
		ModelVersion:              p.next(),
		ConfigJSON:                p.next(),
	}
	return r, p.err
}
