package reference

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"vigil/pkg/api"
	"vigil/pkg/stats"
)

// DefaultBins is the histogram resolution for numeric summaries.
const DefaultBins = 10

// BuildFromColumns summarizes raw columnar values into a reference
// distribution. A column counts as numeric only when every value is
// numeric; mixed columns degrade to categorical so nothing is silently
// dropped.
func BuildFromColumns(modelVersion string, columns map[string][]api.FeatureValue, output []api.FeatureValue, bins int) *api.ReferenceDistribution {
	if bins <= 0 {
		bins = DefaultBins
	}

	ref := &api.ReferenceDistribution{
		ModelVersion: modelVersion,
		Features:     make(map[string]api.FeatureSummary, len(columns)),
		CapturedAt:   time.Now().UTC(),
	}
	for name, values := range columns {
		if len(values) == 0 {
			continue
		}
		ref.Features[name] = summarize(values, bins)
	}
	if len(output) > 0 {
		summary := summarize(output, bins)
		ref.Output = &summary
	}
	return ref
}

// BuildFromRecords summarizes captured inference records into a new
// baseline; this is the rebaseline path. Predicted values form the
// output summary.
func BuildFromRecords(modelVersion string, records []api.InferenceRecord, bins int) (*api.ReferenceDistribution, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot rebaseline from zero records")
	}

	columns := make(map[string][]api.FeatureValue)
	var output []api.FeatureValue
	for _, rec := range records {
		for name, v := range rec.Features {
			columns[name] = append(columns[name], v)
		}
		output = append(output, rec.Predicted)
	}

	ref := BuildFromColumns(modelVersion, columns, output, bins)
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return ref, nil
}

// Save writes a reference summary as JSON, replacing any previous
// snapshot atomically.
func Save(path string, ref *api.ReferenceDistribution) error {
	data, err := json.MarshalIndent(ref, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reference snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write reference snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

func summarize(values []api.FeatureValue, bins int) api.FeatureSummary {
	allNumeric := true
	for _, v := range values {
		if v.Kind != api.ValueNumeric {
			allNumeric = false
			break
		}
	}

	if allNumeric {
		nums := make([]float64, len(values))
		min, max := values[0].Num, values[0].Num
		for i, v := range values {
			nums[i] = v.Num
			if v.Num < min {
				min = v.Num
			}
			if v.Num > max {
				max = v.Num
			}
		}
		edges := stats.EqualWidthEdges(min, max, bins)
		return api.FeatureSummary{
			Kind:        api.ValueNumeric,
			BinEdges:    edges,
			BinCounts:   stats.HistogramNumeric(nums, edges),
			SampleCount: int64(len(values)),
		}
	}

	cats := make([]string, len(values))
	for i, v := range values {
		if v.Kind == api.ValueNumeric {
			cats[i] = strconv.FormatFloat(v.Num, 'g', -1, 64)
		} else {
			cats[i] = v.Cat
		}
	}
	return api.FeatureSummary{
		Kind:        api.ValueCategorical,
		Categories:  stats.CategoryCounts(cats),
		SampleCount: int64(len(values)),
	}
}
