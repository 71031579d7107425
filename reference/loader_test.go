package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/api"
)

func TestNewSource_SchemeDispatch(t *testing.T) {
	src, err := NewSource("s3://baselines/v1/reference.json", "v1.0")
	require.NoError(t, err)
	s3src, ok := src.(*S3Source)
	require.True(t, ok)
	assert.Equal(t, "baselines", s3src.Bucket)
	assert.Equal(t, "v1/reference.json", s3src.Key)

	src, err = NewSource("/data/reference_data.csv", "v1.0")
	require.NoError(t, err)
	_, ok = src.(*CSVSource)
	assert.True(t, ok)

	src, err = NewSource("/data/reference.json", "v1.0")
	require.NoError(t, err)
	_, ok = src.(*FileSource)
	assert.True(t, ok)
}

func TestNewSource_MalformedS3URI(t *testing.T) {
	_, err := NewSource("s3://bucket-only", "v1.0")
	assert.Error(t, err)
}

func TestCSVSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference_data.csv")
	csv := "feature_1,feature_2,segment,target\n"
	for i := 0; i < 50; i++ {
		csv += "1.5,10.0,consumer,0\n"
		csv += "8.5,90.0,business,1\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	src := &CSVSource{Path: path, ModelVersion: "v1.0"}
	ref, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1.0", ref.ModelVersion)
	require.Contains(t, ref.Features, "feature_1")
	require.Contains(t, ref.Features, "segment")
	assert.NotContains(t, ref.Features, "target", "the label column becomes the output summary")

	f1 := ref.Features["feature_1"]
	assert.Equal(t, api.ValueNumeric, f1.Kind)
	assert.Equal(t, int64(100), f1.SampleCount)

	seg := ref.Features["segment"]
	assert.Equal(t, api.ValueCategorical, seg.Kind)
	assert.Equal(t, int64(50), seg.Categories["consumer"])

	require.NotNil(t, ref.Output)
	assert.Equal(t, int64(100), ref.Output.SampleCount)
}

func TestCSVSource_MissingCellsExcluded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference_data.csv")
	csv := "feature_1,target\n1.0,0\n,1\n3.0,0\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	src := &CSVSource{Path: path, ModelVersion: "v1.0"}
	ref, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), ref.Features["feature_1"].SampleCount)
}

func TestFileSource_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.json")

	original := &api.ReferenceDistribution{
		ModelVersion: "v2.0",
		Features: map[string]api.FeatureSummary{
			"age": {
				Kind:        api.ValueNumeric,
				BinEdges:    []float64{18, 30, 50, 90},
				BinCounts:   []int64{40, 40, 20},
				SampleCount: 100,
			},
		},
		CapturedAt: time.Now().UTC(),
	}
	require.NoError(t, Save(path, original))

	loaded, err := (&FileSource{Path: path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, original.ModelVersion, loaded.ModelVersion)
	assert.Equal(t, original.Features["age"].BinEdges, loaded.Features["age"].BinEdges)
}

func TestFileSource_RejectsInvalidSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.json")
	// Edge/count mismatch must not load.
	bad := `{"model_version":"v1.0","features":{"age":{"kind":0,"bin_edges":[0,1],"bin_counts":[1,2,3],"sample_count":6}}}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := (&FileSource{Path: path}).Load(context.Background())
	assert.Error(t, err)
}

func TestBuildFromRecords(t *testing.T) {
	now := time.Now()
	var records []api.InferenceRecord
	for i := 0; i < 60; i++ {
		records = append(records, api.InferenceRecord{
			ID:        uuid.New(),
			Timestamp: now,
			Features: map[string]api.FeatureValue{
				"age":     api.Numeric(float64(20 + i%50)),
				"segment": api.Categorical("consumer"),
			},
			Predicted:    api.Categorical("0"),
			ModelVersion: "v1.0",
		})
	}

	ref, err := BuildFromRecords("v1.1", records, DefaultBins)
	require.NoError(t, err)

	assert.Equal(t, "v1.1", ref.ModelVersion)
	age := ref.Features["age"]
	assert.Equal(t, api.ValueNumeric, age.Kind)
	assert.Len(t, age.BinEdges, DefaultBins+1)
	require.NotNil(t, ref.Output)
	assert.Equal(t, api.ValueCategorical, ref.Output.Kind)
}

func TestBuildFromRecords_Empty(t *testing.T) {
	_, err := BuildFromRecords("v1.0", nil, DefaultBins)
	assert.Error(t, err)
}

func TestBuildFromColumns_MixedColumnDegradesToCategorical(t *testing.T) {
	columns := map[string][]api.FeatureValue{
		"code": {api.Numeric(1), api.Categorical("A"), api.Numeric(1)},
	}
	ref := BuildFromColumns("v1.0", columns, nil, DefaultBins)

	code := ref.Features["code"]
	assert.Equal(t, api.ValueCategorical, code.Kind)
	assert.Equal(t, int64(2), code.Categories["1"])
	assert.Equal(t, int64(1), code.Categories["A"])
}
