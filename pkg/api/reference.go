package api

import (
	"fmt"
	"time"
)

// FeatureSummary is the compact distribution summary kept for one feature
// in the reference baseline. Numeric features keep a fixed-edge histogram;
// categorical features keep category counts.
type FeatureSummary struct {
	Kind        ValueKind        `json:"kind"`
	BinEdges    []float64        `json:"bin_edges,omitempty"`
	BinCounts   []int64          `json:"bin_counts,omitempty"`
	Categories  map[string]int64 `json:"categories,omitempty"`
	SampleCount int64            `json:"sample_count"`
}

// Validate checks internal consistency of the summary.
func (s *FeatureSummary) Validate() error {
	if s.SampleCount <= 0 {
		return fmt.Errorf("summary has no samples")
	}
	switch s.Kind {
	case ValueNumeric:
		if len(s.BinEdges) < 2 {
			return fmt.Errorf("numeric summary needs at least 2 bin edges, got %d", len(s.BinEdges))
		}
		if len(s.BinCounts) != len(s.BinEdges)-1 {
			return fmt.Errorf("bin count mismatch: %d counts for %d edges", len(s.BinCounts), len(s.BinEdges))
		}
		for i := 1; i < len(s.BinEdges); i++ {
			if s.BinEdges[i] <= s.BinEdges[i-1] {
				return fmt.Errorf("bin edges must be strictly increasing")
			}
		}
	case ValueCategorical:
		if len(s.Categories) == 0 {
			return fmt.Errorf("categorical summary has no categories")
		}
	default:
		return fmt.Errorf("unknown summary kind %d", s.Kind)
	}
	return nil
}

// ReferenceDistribution is the training-time baseline a model version is
// compared against. Immutable for the lifetime of a deployed version;
// replaced only by an explicit rebaseline.
type ReferenceDistribution struct {
	ModelVersion string                    `json:"model_version"`
	Features     map[string]FeatureSummary `json:"features"`
	Output       *FeatureSummary           `json:"output,omitempty"`
	CapturedAt   time.Time                 `json:"captured_at"`
}

// Validate checks every summary in the distribution.
func (r *ReferenceDistribution) Validate() error {
	if len(r.Features) == 0 {
		return fmt.Errorf("reference has no feature summaries")
	}
	for name, s := range r.Features {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("feature %q: %w", name, err)
		}
	}
	if r.Output != nil {
		if err := r.Output.Validate(); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}
	return nil
}
