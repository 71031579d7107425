package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ValueKind discriminates numeric from categorical feature values.
type ValueKind uint8

const (
	ValueNumeric ValueKind = iota
	ValueCategorical
)

// FeatureValue is a single observed value for one feature. Models expose
// dynamic feature sets, so values are tagged scalars rather than fixed
// struct fields.
type FeatureValue struct {
	Kind ValueKind
	Num  float64
	Cat  string
}

// Numeric wraps a float as a FeatureValue.
func Numeric(v float64) FeatureValue {
	return FeatureValue{Kind: ValueNumeric, Num: v}
}

// Categorical wraps a string as a FeatureValue.
func Categorical(v string) FeatureValue {
	return FeatureValue{Kind: ValueCategorical, Cat: v}
}

// MarshalJSON encodes the value as a bare scalar, matching the shape the
// serving layer logs into prediction_logs.features.
func (v FeatureValue) MarshalJSON() ([]byte, error) {
	if v.Kind == ValueNumeric {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Cat)
}

// UnmarshalJSON accepts numbers, strings, and booleans. Booleans are
// treated as two-category categoricals.
func (v *FeatureValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = Numeric(t)
	case string:
		*v = Categorical(t)
	case bool:
		*v = Categorical(strconv.FormatBool(t))
	case nil:
		return fmt.Errorf("feature value must not be null")
	default:
		return fmt.Errorf("unsupported feature value type %T", raw)
	}
	return nil
}

// InferenceRecord is one captured request/response pair from the serving
// layer. Records are immutable once written; the monitor only reads them.
type InferenceRecord struct {
	ID           uuid.UUID               `json:"id"`
	Timestamp    time.Time               `json:"timestamp"`
	Features     map[string]FeatureValue `json:"features"`
	Predicted    FeatureValue            `json:"predicted"`
	Actual       *FeatureValue           `json:"actual,omitempty"`
	ModelVersion string                  `json:"model_version"`
}

// DriftWindow is the bounded set of recent records used as the current
// sample for one analysis run. Built fresh per run, never persisted.
type DriftWindow struct {
	Start   time.Time
	End     time.Time
	Records []InferenceRecord
}

// Size returns the number of records in the window.
func (w *DriftWindow) Size() int {
	return len(w.Records)
}
