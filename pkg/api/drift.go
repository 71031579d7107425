package api

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind distinguishes which variable a drift entry measured.
type EntryKind string

const (
	EntryFeature    EntryKind = "feature"    // input feature distribution
	EntryPrediction EntryKind = "prediction" // predicted output distribution
	EntryConcept    EntryKind = "concept"    // ground-truth distribution
)

// DriftMetric is one raw analyzer measurement before classification.
type DriftMetric struct {
	FeatureName   string    `json:"feature_name"`
	Kind          EntryKind `json:"kind"`
	Value         float64   `json:"value"`
	NotApplicable bool      `json:"not_applicable,omitempty"`
}

// FeatureDriftResult is a classified drift entry in a report.
type FeatureDriftResult struct {
	FeatureName   string    `json:"feature_name"`
	Kind          EntryKind `json:"kind"`
	MetricValue   float64   `json:"metric_value"`
	Severity      Severity  `json:"severity"`
	NotApplicable bool      `json:"not_applicable,omitempty"`
}

// DriftReport is the structured output of one monitoring run. Immutable
// once produced; the report sink appends it for the dashboard.
type DriftReport struct {
	ID           uuid.UUID            `json:"id"`
	ModelVersion string               `json:"model_version"`
	RunAt        time.Time            `json:"run_at"`
	WindowStart  time.Time            `json:"window_start"`
	WindowEnd    time.Time            `json:"window_end"`
	WindowSize   int                  `json:"window_size"`
	Results      []FeatureDriftResult `json:"results"`
	Overall      Severity             `json:"overall"`
}

// DriftedFeatures returns the entries at or above warning, in report order.
func (r *DriftReport) DriftedFeatures() []FeatureDriftResult {
	var drifted []FeatureDriftResult
	for _, res := range r.Results {
		if res.Severity >= SeverityWarning {
			drifted = append(drifted, res)
		}
	}
	return drifted
}

// AlertEvent records one dispatched notification. Created only when the
// dispatch policy fires; its lifecycle ends at delivery confirmation or
// logged permanent failure.
type AlertEvent struct {
	ID          uuid.UUID `json:"id"`
	ReportID    uuid.UUID `json:"report_id"`
	Scope       string    `json:"scope"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}
