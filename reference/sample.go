package reference

import (
	"math/rand"
	"sort"

	"vigil/pkg/api"
)

// SampleRecord draws one synthetic inference record from the reference
// distribution. With drifted set, bin and category weights are reversed
// so the sampled traffic lands on a measurably shifted distribution.
func SampleRecord(rng *rand.Rand, ref *api.ReferenceDistribution, drifted bool) api.InferenceRecord {
	rec := api.InferenceRecord{
		ModelVersion: ref.ModelVersion,
		Features:     make(map[string]api.FeatureValue, len(ref.Features)),
	}
	for name, summary := range ref.Features {
		rec.Features[name] = sampleValue(rng, summary, drifted)
	}
	if ref.Output != nil {
		rec.Predicted = sampleValue(rng, *ref.Output, drifted)
	} else {
		rec.Predicted = api.Numeric(0)
	}
	return rec
}

func sampleValue(rng *rand.Rand, summary api.FeatureSummary, drifted bool) api.FeatureValue {
	if summary.Kind == api.ValueNumeric {
		weights := make([]int64, len(summary.BinCounts))
		copy(weights, summary.BinCounts)
		if drifted {
			reverse(weights)
		}
		bin := weightedIndex(rng, weights)
		lo, hi := summary.BinEdges[bin], summary.BinEdges[bin+1]
		return api.Numeric(lo + rng.Float64()*(hi-lo))
	}

	// Categorical axes are iterated in sorted order so the weighted draw
	// is reproducible under a fixed seed.
	names := make([]string, 0, len(summary.Categories))
	for name := range summary.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	weights := make([]int64, len(names))
	for i, name := range names {
		weights[i] = summary.Categories[name]
	}
	if drifted {
		reverse(weights)
	}
	return api.Categorical(names[weightedIndex(rng, weights)])
}

func weightedIndex(rng *rand.Rand, weights []int64) int {
	var total int64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return rng.Intn(len(weights))
	}
	pick := rng.Int63n(total)
	for i, w := range weights {
		pick -= w
		if pick < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func reverse(weights []int64) {
	for i, j := 0, len(weights)-1; i < j; i, j = i+1, j-1 {
		weights[i], weights[j] = weights[j], weights[i]
	}
}
