package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/dispatcher"
	"vigil/pkg/api"
	"vigil/pkg/errors"
)

type fakeRecordStore struct {
	window *api.DriftWindow
	err    error
	reads  int
}

func (f *fakeRecordStore) ReadWindow(ctx context.Context, start, end time.Time) (*api.DriftWindow, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.window, nil
}

func (f *fakeRecordStore) ReadLast(ctx context.Context, n int) (*api.DriftWindow, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.window, nil
}

type fakeRefSource struct {
	ref   *api.ReferenceDistribution
	loads int
}

func (f *fakeRefSource) Load(ctx context.Context) (*api.ReferenceDistribution, error) {
	f.loads++
	return f.ref, nil
}

type fakeSink struct {
	mu      sync.Mutex
	reports []*api.DriftReport
	err     error
}

func (f *fakeSink) WriteReport(ctx context.Context, report *api.DriftReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) Send(ctx context.Context, message string, severity api.Severity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message)
	return nil
}

func ageReference() *api.ReferenceDistribution {
	return &api.ReferenceDistribution{
		ModelVersion: "v1.0",
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
}

func ageWindow(young, middle, old int) *api.DriftWindow {
	now := time.Now().UTC()
	var records []api.InferenceRecord
	add := func(n int, age float64) {
		for i := 0; i < n; i++ {
			records = append(records, api.InferenceRecord{
				ID:           uuid.New(),
				Timestamp:    now,
				Features:     map[string]api.FeatureValue{"age": api.Numeric(age)},
				Predicted:    api.Numeric(0),
				ModelVersion: "v1.0",
			})
		}
	}
	add(young, 25)
	add(middle, 40)
	add(old, 60)
	return &api.DriftWindow{Start: now.Add(-24 * time.Hour), End: now, Records: records}
}

type env struct {
	runner   *Runner
	records  *fakeRecordStore
	refs     *fakeRefSource
	sink     *fakeSink
	notifier *fakeNotifier
}

func newEnv(window *api.DriftWindow) *env {
	e := &env{
		records:  &fakeRecordStore{window: window},
		refs:     &fakeRefSource{ref: ageReference()},
		sink:     &fakeSink{},
		notifier: &fakeNotifier{},
	}
	disp := dispatcher.New(dispatcher.NewMemoryHistory(), e.notifier, time.Hour)
	e.runner = NewRunner(e.records, e.refs, e.sink, disp)
	return e
}

func TestRunAnalysis_EndToEndCriticalShift(t *testing.T) {
	// Current window [10%, 10%, 80%] against reference [40%, 40%, 20%].
	e := newEnv(ageWindow(10, 10, 80))

	report, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, api.SeverityCritical, report.Overall)
	assert.Equal(t, 100, report.WindowSize)
	assert.Equal(t, 1, e.sink.count())

	require.Len(t, e.notifier.messages, 1)
	assert.Contains(t, e.notifier.messages[0], "age")
	assert.Contains(t, e.notifier.messages[0], "critical")
}

func TestRunAnalysis_StableWindowNoAlert(t *testing.T) {
	e := newEnv(ageWindow(40, 40, 20))

	report, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, api.SeverityNone, report.Overall)
	assert.Equal(t, 1, e.sink.count(), "clean reports are still persisted")
	assert.Empty(t, e.notifier.messages)
}

func TestRunAnalysis_InsufficientDataProducesNoReport(t *testing.T) {
	e := newEnv(ageWindow(3, 3, 3))

	report, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInsufficientData))
	assert.Nil(t, report)
	assert.Zero(t, e.sink.count())
	assert.Empty(t, e.notifier.messages)
}

func TestRunAnalysis_InvalidConfigAbortsBeforeIO(t *testing.T) {
	e := newEnv(ageWindow(40, 40, 20))

	cfg := DefaultConfig()
	cfg.Thresholds.Warning = 0.5
	cfg.Thresholds.Critical = 0.1

	_, err := e.runner.RunAnalysis(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
	assert.Zero(t, e.refs.loads, "no I/O may happen before validation")
	assert.Zero(t, e.records.reads)
}

func TestRunAnalysis_NotifierFailureStillPersistsReport(t *testing.T) {
	e := newEnv(ageWindow(10, 10, 80))
	e.notifier.err = fmt.Errorf("webhook down")

	report, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.NoError(t, err, "partial delivery is not a run failure")
	require.NotNil(t, report)
	assert.Equal(t, 1, e.sink.count())
}

func TestRunAnalysis_SinkFailureSurfaces(t *testing.T) {
	e := newEnv(ageWindow(10, 10, 80))
	e.sink.err = errors.NewSinkUnavailable("report sink", fmt.Errorf("connection refused"))

	_, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSinkUnavailable))
	assert.Empty(t, e.notifier.messages, "alerting does not run ahead of report persistence")
}

func TestRunAnalysis_RepeatRunSuppressedByCooldown(t *testing.T) {
	e := newEnv(ageWindow(10, 10, 80))

	_, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.NoError(t, err)
	_, err = e.runner.RunAnalysis(context.Background(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, e.sink.count(), "every run writes its report")
	assert.Len(t, e.notifier.messages, 1, "the unchanged condition alerts once per cooldown")
}

func TestRunAnalysis_CountWindowUsesReadLast(t *testing.T) {
	e := newEnv(ageWindow(40, 40, 20))

	cfg := DefaultConfig()
	cfg.WindowCount = 100

	_, err := e.runner.RunAnalysis(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, e.records.reads)
}

func TestRunAnalysis_ConcurrentRunsIndependent(t *testing.T) {
	e := newEnv(ageWindow(10, 10, 80))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.runner.RunAnalysis(context.Background(), DefaultConfig())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, e.sink.count())
	// Overlapping runs race to alert first; the history store guarantees
	// at least one fires and the rest are deduplicated or collapsed.
	assert.GreaterOrEqual(t, len(e.notifier.messages), 1)
}
