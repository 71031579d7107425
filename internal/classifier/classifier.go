// Package classifier maps raw drift metrics to severity labels and
// assembles the final report.
package classifier

import (
	"time"

	"github.com/google/uuid"

	"vigil/pkg/api"
	"vigil/pkg/errors"
)

// Default PSI thresholds. The industry convention reads PSI < 0.1 as
// stable, 0.1-0.25 as shifting, and >= 0.25 as a population break.
const (
	DefaultWarningThreshold  = 0.1
	DefaultCriticalThreshold = 0.25
)

// Thresholds configures the severity bands for one metric family.
type Thresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
}

// DefaultThresholds returns the standard PSI bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: DefaultWarningThreshold, Critical: DefaultCriticalThreshold}
}

// Validate enforces ordering before any run I/O happens.
func (t Thresholds) Validate() error {
	if t.Warning < 0 || t.Critical < 0 {
		return errors.NewInvalidConfiguration("thresholds must be non-negative")
	}
	if t.Warning >= t.Critical {
		return errors.NewInvalidConfiguration("warning threshold must be below critical threshold")
	}
	return nil
}

// Severity applies the bands to one metric value. Boundary values belong
// to the higher severity.
func (t Thresholds) Severity(value float64) api.Severity {
	switch {
	case value >= t.Critical:
		return api.SeverityCritical
	case value >= t.Warning:
		return api.SeverityWarning
	default:
		return api.SeverityNone
	}
}

// Classifier converts analyzer output into DriftReports.
type Classifier struct {
	thresholds Thresholds
}

// New creates a Classifier, rejecting invalid thresholds up front.
func New(thresholds Thresholds) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: thresholds}, nil
}

// Classify builds an immutable report from the analyzer's metrics. The
// overall severity is the maximum across entries; not-applicable entries
// stay at none.
func (c *Classifier) Classify(modelVersion string, window *api.DriftWindow, metrics []api.DriftMetric) *api.DriftReport {
	report := &api.DriftReport{
		ID:           uuid.New(),
		ModelVersion: modelVersion,
		RunAt:        time.Now().UTC(),
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		WindowSize:   window.Size(),
		Results:      make([]api.FeatureDriftResult, 0, len(metrics)),
	}

	for _, m := range metrics {
		result := api.FeatureDriftResult{
			FeatureName:   m.FeatureName,
			Kind:          m.Kind,
			MetricValue:   m.Value,
			NotApplicable: m.NotApplicable,
		}
		if !m.NotApplicable {
			result.Severity = c.thresholds.Severity(m.Value)
		}
		report.Results = append(report.Results, result)
		report.Overall = api.MaxSeverity(report.Overall, result.Severity)
	}

	return report
}
