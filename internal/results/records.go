// Package results persists inference summary rows as flat, append-only
// warehouse-compatible CSV tables. Posterior sample sets are never
// persisted; only the derived summaries below are, one immutable row per
// (model, subject, run). Column names and types must remain stable across
// versions; model_version exists so downstream consumers can detect schema
// drift.
package results

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AggregateSubject is the subject id used for fleet-wide (non-per-vehicle)
// rows.
const AggregateSubject = "AGGREGATE"

// RHatThreshold is the convergence cutoff: rows with max_r_hat at or above
// it are flagged low-confidence, not rejected.
const RHatThreshold = 1.01

// Converged reports whether a fit's worst R-hat clears the threshold.
func Converged(maxRHat float64) bool {
	return maxRHat < RHatThreshold
}

// Hyperparameters is the JSON-encoded sampler configuration persisted with
// every row.
type Hyperparameters struct {
	Samples int    `json:"samples"`
	Tune    int    `json:"tune"`
	Chains  int    `json:"chains"`
	Seed    uint64 `json:"seed"`
}

// JSON renders the hyperparameters for the row's hyperparameters column.
func (h Hyperparameters) JSON() string {
	b, _ := json.Marshal(h)
	return string(b)
}

// SurvivalRecord is one persisted survival-model summary row.
type SurvivalRecord struct {
	RunID                  string
	RunTimestamp           time.Time
	SubjectID              string
	DateKey                string
	PredictionHorizonHours float64
	BaselineHazardRate     float64
	HazardRateLowerCI      float64
	HazardRateUpperCI      float64
	PredictedTimeHours     float64
	PredictedTimeLowerCI   float64
	PredictedTimeUpperCI   float64
	ConvergenceFlag        bool
	MaxRHat                float64
	EffectiveSampleSize    float64
	ModelVersion           string
	HyperparametersJSON    string
}

// ChangepointRecord is one persisted change-point detection row.
type ChangepointRecord struct {
	RunID                  string
	RunTimestamp           time.Time
	SubjectID              string
	DateKey                string
	Detected               bool
	ChangepointTimestamp   string // RFC3339 or empty when the series has no dates
	ChangepointIndex       int
	ChangepointProbability float64
	PreChangeHazardRate    float64
	PostChangeHazardRate   float64
	HazardRatio            float64
	HazardRatioLowerCI     float64
	HazardRatioUpperCI     float64
	MTTDHours              float64
	ConvergenceFlag        bool
	MaxRHat                float64
	ModelVersion           string
	HyperparametersJSON    string
}

// ExperimentRecord is one persisted weighting-scheme comparison row.
type ExperimentRecord struct {
	ExperimentID              string
	ExperimentTimestamp       time.Time
	SamplingMethod            string
	RareEventRate             float64
	SampleSize                int
	Sensitivity               float64
	Specificity               float64
	Precision                 float64
	FalsePositiveRate         float64
	AUC                       float64
	MTTDHours                 float64
	SensitivityImprovementPct float64
	MTTDImprovementPct        float64
	PValue                    float64
	TP, FP, TN, FN            int
	ModelVersion              string
	ConfigJSON                string
}

// NewSurvivalRunID returns a fresh survival run id. The UUID suffix keeps
// concurrent appenders collision-free without row locking.
func NewSurvivalRunID() string { return "SRV_" + uuid.NewString() }

// NewChangepointRunID returns a fresh change-point run id.
func NewChangepointRunID() string { return "CP_" + uuid.NewString() }

// DateKey formats a timestamp as the warehouse date partition key.
func DateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }
