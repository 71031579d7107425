// Package reference loads and builds the training-time baseline a model
// version is monitored against. Snapshots live either as a pre-computed
// JSON summary (local file or S3 object) or as the raw reference CSV the
// training pipeline exported; the CSV is summarized on load.
package reference

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vigil/pkg/api"
)

// TargetColumn is the CSV column holding the training label; it becomes
// the output summary.
const TargetColumn = "target"

// Source yields the reference distribution for a run. Loaded once per
// run and cached by the caller for the run's duration.
type Source interface {
	Load(ctx context.Context) (*api.ReferenceDistribution, error)
}

// NewSource picks a loader from the URI shape: s3:// objects, *.csv
// sample exports, anything else a JSON summary file.
func NewSource(uri, modelVersion string) (Source, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		return newS3Source(uri)
	case strings.HasSuffix(uri, ".csv"):
		return &CSVSource{Path: uri, ModelVersion: modelVersion}, nil
	default:
		return &FileSource{Path: uri}, nil
	}
}

// FileSource reads a JSON reference summary from the local filesystem.
type FileSource struct {
	Path string
}

func (f *FileSource) Load(ctx context.Context) (*api.ReferenceDistribution, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference snapshot: %w", err)
	}
	return parseSummary(data)
}

func parseSummary(data []byte) (*api.ReferenceDistribution, error) {
	var ref api.ReferenceDistribution
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("malformed reference snapshot: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference snapshot: %w", err)
	}
	return &ref, nil
}

// CSVSource summarizes a raw reference sample (one row per training
// record, header row of feature names, TargetColumn for the label).
type CSVSource struct {
	Path         string
	ModelVersion string
	Bins         int
}

func (c *CSVSource) Load(ctx context.Context) (*api.ReferenceDistribution, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference sample: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference sample: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("reference sample has no data rows")
	}

	header := rows[0]
	columns := make(map[string][]api.FeatureValue, len(header))
	for _, row := range rows[1:] {
		for i, cell := range row {
			if i >= len(header) || cell == "" {
				// Missing values are excluded, not zero-filled.
				continue
			}
			columns[header[i]] = append(columns[header[i]], parseCell(cell))
		}
	}

	output := columns[TargetColumn]
	delete(columns, TargetColumn)

	ref := BuildFromColumns(c.ModelVersion, columns, output, c.Bins)
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference sample: %w", err)
	}
	return ref, nil
}

// parseCell types a CSV cell: parseable numbers are numeric, anything
// else categorical.
func parseCell(cell string) api.FeatureValue {
	if n, err := strconv.ParseFloat(cell, 64); err == nil {
		return api.Numeric(n)
	}
	return api.Categorical(cell)
}
