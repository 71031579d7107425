package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPSI_IdenticalDistributions(t *testing.T) {
	ref := []float64{0.4, 0.4, 0.2}
	cur := []float64{0.4, 0.4, 0.2}

	assert.Zero(t, PSI(ref, cur))
}

func TestPSI_ShiftedDistribution(t *testing.T) {
	// Age scenario: [18-30, 31-50, 51+] shifting from 40/40/20 to 10/10/80.
	ref := []float64{0.4, 0.4, 0.2}
	cur := []float64{0.1, 0.1, 0.8}

	psi := PSI(ref, cur)
	assert.Greater(t, psi, 0.25, "a hard population shift must exceed the critical band")
}

func TestPSI_EmptyBinStaysFinite(t *testing.T) {
	ref := []float64{0.5, 0.5, 0.0}
	cur := []float64{0.0, 0.5, 0.5}

	psi := PSI(ref, cur)
	assert.False(t, psi != psi, "PSI must not be NaN")
	assert.Greater(t, psi, 0.0)
}

func TestPSI_Deterministic(t *testing.T) {
	ref := []float64{0.25, 0.25, 0.3, 0.2}
	cur := []float64{0.1, 0.3, 0.35, 0.25}

	first := PSI(ref, cur)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, PSI(ref, cur))
	}
}

func TestProportions(t *testing.T) {
	assert.Equal(t, []float64{0.4, 0.4, 0.2}, Proportions([]int64{40, 40, 20}))
	assert.Equal(t, []float64{0, 0}, Proportions([]int64{0, 0}))
}

func TestHistogramNumeric(t *testing.T) {
	edges := []float64{0, 10, 20, 30}

	counts := HistogramNumeric([]float64{1, 5, 12, 29, 30}, edges)
	require.Len(t, counts, 3)
	assert.Equal(t, int64(2), counts[0])
	assert.Equal(t, int64(1), counts[1])
	assert.Equal(t, int64(2), counts[2]) // 29 and the clamped 30
}

func TestHistogramNumeric_ClampsOutOfRange(t *testing.T) {
	edges := []float64{0, 10, 20}

	counts := HistogramNumeric([]float64{-5, 105}, edges)
	assert.Equal(t, int64(1), counts[0])
	assert.Equal(t, int64(1), counts[1])
}

func TestEqualWidthEdges(t *testing.T) {
	edges := EqualWidthEdges(0, 100, 4)
	assert.Equal(t, []float64{0, 25, 50, 75, 100}, edges)

	// Constant feature widens to a unit range instead of collapsing.
	edges = EqualWidthEdges(7, 7, 3)
	require.Len(t, edges, 4)
	assert.Equal(t, 7.0, edges[0])
	assert.Equal(t, 8.0, edges[3])
}

func TestAlignCategories(t *testing.T) {
	ref := map[string]int64{"a": 50, "b": 50}
	cur := map[string]int64{"b": 40, "c": 60}

	refProps, curProps := AlignCategories(ref, cur)
	// Axis is sorted union: a, b, c.
	assert.Equal(t, []float64{0.5, 0.5, 0}, refProps)
	assert.Equal(t, []float64{0, 0.4, 0.6}, curProps)
}
