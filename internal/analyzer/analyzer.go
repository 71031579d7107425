// Package analyzer quantifies how far a window of live inference records
// has moved from the reference distribution. One metric per feature plus
// entries for the predicted output and, when ground truth is present, the
// concept-drift variant over actuals.
package analyzer

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"vigil/pkg/api"
	"vigil/pkg/errors"
	"vigil/pkg/stats"
)

const (
	// DefaultMinRecords is the smallest window considered statistically
	// meaningful for PSI.
	DefaultMinRecords = 30

	// DefaultMaxConcurrency bounds the per-feature worker pool.
	DefaultMaxConcurrency = 4

	// PredictionEntryName labels the output-variable entries in reports.
	PredictionEntryName = "prediction"
)

// Analyzer computes drift metrics. It holds no mutable state; Analyze is
// pure over its inputs and safe for concurrent runs.
type Analyzer struct {
	minRecords     int
	maxConcurrency int
	log            *slog.Logger
}

// New creates an Analyzer. Non-positive arguments fall back to defaults.
func New(minRecords, maxConcurrency int) *Analyzer {
	if minRecords <= 0 {
		minRecords = DefaultMinRecords
	}
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Analyzer{
		minRecords:     minRecords,
		maxConcurrency: maxConcurrency,
		log:            slog.Default(),
	}
}

// Analyze compares the window against the reference and returns one metric
// per analyzable variable, ordered by feature name with the output entries
// last. Windows below the record minimum fail with INSUFFICIENT_DATA.
func (a *Analyzer) Analyze(ctx context.Context, ref *api.ReferenceDistribution, window *api.DriftWindow) ([]api.DriftMetric, error) {
	if window.Size() < a.minRecords {
		return nil, errors.NewInsufficientData(window.Size(), a.minRecords)
	}

	type task struct {
		metric api.DriftMetric
		values columnValues
		ref    api.FeatureSummary
	}

	var tasks []task

	// Feature names are sorted so report ordering does not depend on map
	// iteration or goroutine scheduling.
	names := make([]string, 0, len(ref.Features))
	for name := range ref.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		summary := ref.Features[name]
		values := collectFeature(window.Records, name, summary.Kind)
		if values.empty() {
			// Feature absent from the whole window: not comparable, skip
			// rather than report a zero metric.
			a.log.Debug("feature absent from window, skipping", "feature", name)
			continue
		}
		tasks = append(tasks, task{
			metric: api.DriftMetric{FeatureName: name, Kind: api.EntryFeature},
			values: values,
			ref:    summary,
		})
	}

	if ref.Output != nil {
		predicted := collectOutput(window.Records, ref.Output.Kind, false)
		if !predicted.empty() {
			tasks = append(tasks, task{
				metric: api.DriftMetric{FeatureName: PredictionEntryName, Kind: api.EntryPrediction},
				values: predicted,
				ref:    *ref.Output,
			})
		}

		actuals := collectOutput(window.Records, ref.Output.Kind, true)
		if actuals.empty() {
			// No ground truth captured in this window: the concept-drift
			// entry is reported but marked not applicable.
			tasks = append(tasks, task{
				metric: api.DriftMetric{FeatureName: PredictionEntryName, Kind: api.EntryConcept, NotApplicable: true},
			})
		} else {
			tasks = append(tasks, task{
				metric: api.DriftMetric{FeatureName: PredictionEntryName, Kind: api.EntryConcept},
				values: actuals,
				ref:    *ref.Output,
			})
		}
	}

	results := make([]api.DriftMetric, len(tasks))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)
	for i := range tasks {
		i := i
		g.Go(func() error {
			t := tasks[i]
			if t.metric.NotApplicable {
				results[i] = t.metric
				return nil
			}
			t.metric.Value = divergence(t.ref, t.values)
			results[i] = t.metric
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// columnValues holds the window-side observations for one variable.
type columnValues struct {
	nums []float64
	cats []string
}

func (c columnValues) empty() bool {
	return len(c.nums) == 0 && len(c.cats) == 0
}

// collectFeature extracts one feature's values from the window. Records
// missing the feature, or carrying a value of the wrong kind, are excluded
// from this feature's distribution rather than counted as zero.
func collectFeature(records []api.InferenceRecord, name string, kind api.ValueKind) columnValues {
	var col columnValues
	for _, rec := range records {
		v, ok := rec.Features[name]
		if !ok || v.Kind != kind {
			continue
		}
		col.append(v)
	}
	return col
}

// collectOutput extracts predicted values, or actuals when wantActual is
// set.
func collectOutput(records []api.InferenceRecord, kind api.ValueKind, wantActual bool) columnValues {
	var col columnValues
	for _, rec := range records {
		v := rec.Predicted
		if wantActual {
			if rec.Actual == nil {
				continue
			}
			v = *rec.Actual
		}
		if v.Kind != kind {
			continue
		}
		col.append(v)
	}
	return col
}

func (c *columnValues) append(v api.FeatureValue) {
	if v.Kind == api.ValueNumeric {
		c.nums = append(c.nums, v.Num)
	} else {
		c.cats = append(c.cats, v.Cat)
	}
}

// divergence computes PSI between the reference summary and the window
// observations, using the reference's own binning.
func divergence(ref api.FeatureSummary, cur columnValues) float64 {
	if ref.Kind == api.ValueNumeric {
		refProps := stats.Proportions(ref.BinCounts)
		curProps := stats.Proportions(stats.HistogramNumeric(cur.nums, ref.BinEdges))
		return stats.PSI(refProps, curProps)
	}
	refProps, curProps := stats.AlignCategories(ref.Categories, stats.CategoryCounts(cur.cats))
	return stats.PSI(refProps, curProps)
}
