// Package stats provides the histogram and divergence math used by drift
// analysis. The drift metric is the Population Stability Index (PSI),
// computed over a shared binning derived from the reference distribution.
// Everything here is deterministic: no sampling, no randomness.
package stats

import (
	"math"
	"sort"
)

// ProportionFloor keeps PSI finite when a bin is empty on one side.
const ProportionFloor = 1e-4

// PSI computes the Population Stability Index between two aligned
// proportion vectors. Both slices must sum to ~1 and have equal length;
// extra entries on either side are ignored.
func PSI(ref, cur []float64) float64 {
	n := len(ref)
	if len(cur) < n {
		n = len(cur)
	}

	psi := 0.0
	for i := 0; i < n; i++ {
		r := ref[i]
		c := cur[i]
		if r == c {
			// Identical mass contributes nothing, including the 0/0 case.
			continue
		}
		if r < ProportionFloor {
			r = ProportionFloor
		}
		if c < ProportionFloor {
			c = ProportionFloor
		}
		psi += (c - r) * math.Log(c/r)
	}

	// Floating error can leave a tiny negative residue.
	if psi < 0 {
		return 0
	}
	return psi
}

// Proportions normalizes bin counts into proportions. A zero total yields
// an all-zero slice.
func Proportions(counts []int64) []float64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	props := make([]float64, len(counts))
	if total == 0 {
		return props
	}
	for i, c := range counts {
		props[i] = float64(c) / float64(total)
	}
	return props
}

// HistogramNumeric counts values into the bins described by edges
// (len(edges)-1 bins). Values below the first edge land in the first bin
// and values at or above the last edge land in the last, so the current
// window can never fall outside the reference binning.
func HistogramNumeric(values []float64, edges []float64) []int64 {
	bins := len(edges) - 1
	if bins < 1 {
		return nil
	}
	counts := make([]int64, bins)
	for _, v := range values {
		idx := sort.SearchFloat64s(edges, v)
		// SearchFloat64s returns the insertion point; shift to a bin index
		// with both overflow ends clamped.
		if idx > 0 {
			idx--
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return counts
}

// EqualWidthEdges derives bins+1 equal-width edges spanning [min, max].
// Degenerate ranges widen by one unit so a constant feature still bins.
func EqualWidthEdges(min, max float64, bins int) []float64 {
	if bins < 1 {
		bins = 1
	}
	if max <= min {
		max = min + 1
	}
	edges := make([]float64, bins+1)
	width := (max - min) / float64(bins)
	for i := 0; i <= bins; i++ {
		edges[i] = min + float64(i)*width
	}
	edges[bins] = max
	return edges
}

// CategoryCounts tallies categorical observations.
func CategoryCounts(values []string) map[string]int64 {
	counts := make(map[string]int64, len(values))
	for _, v := range values {
		counts[v]++
	}
	return counts
}

// AlignCategories projects two category count maps onto one ordered axis
// (the sorted union of categories) and returns aligned proportion vectors.
// Sorting fixes the iteration order, which keeps PSI bit-identical across
// runs.
func AlignCategories(ref, cur map[string]int64) (refProps, curProps []float64) {
	union := make(map[string]struct{}, len(ref)+len(cur))
	for c := range ref {
		union[c] = struct{}{}
	}
	for c := range cur {
		union[c] = struct{}{}
	}

	categories := make([]string, 0, len(union))
	for c := range union {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	refCounts := make([]int64, len(categories))
	curCounts := make([]int64, len(categories))
	for i, c := range categories {
		refCounts[i] = ref[c]
		curCounts[i] = cur[c]
	}
	return Proportions(refCounts), Proportions(curCounts)
}
