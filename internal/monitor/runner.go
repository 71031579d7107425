// Package monitor wires the drift pipeline together: read a window from
// the record store, compare it against the reference, classify, persist
// the report, and dispatch alerts. RunAnalysis is the single entry point
// external schedulers call; the monitor keeps no scheduling state of its
// own.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/analyzer"
	"vigil/internal/classifier"
	"vigil/internal/dispatcher"
	"vigil/pkg/api"
	"vigil/pkg/errors"
	"vigil/reference"
)

// RecordStore reads captured inference records.
type RecordStore interface {
	ReadWindow(ctx context.Context, start, end time.Time) (*api.DriftWindow, error)
	ReadLast(ctx context.Context, n int) (*api.DriftWindow, error)
}

// ReportSink persists finished reports for the dashboard.
type ReportSink interface {
	WriteReport(ctx context.Context, report *api.DriftReport) error
}

// Runner executes monitoring runs. Runners are safe for concurrent use;
// each run operates on its own immutable inputs and the dispatcher's
// history store is atomic per scope.
type Runner struct {
	records    RecordStore
	refSource  reference.Source
	sink       ReportSink
	dispatcher *dispatcher.Dispatcher
	log        *slog.Logger
	now        func() time.Time
}

func NewRunner(records RecordStore, refSource reference.Source, sink ReportSink, disp *dispatcher.Dispatcher) *Runner {
	return &Runner{
		records:    records,
		refSource:  refSource,
		sink:       sink,
		dispatcher: disp,
		log:        slog.Default(),
		now:        time.Now,
	}
}

// RunAnalysis performs one monitoring cycle and returns the produced
// report. A window below the record minimum returns INSUFFICIENT_DATA
// and no report; the scheduler simply tries again next cycle. Alert
// delivery failure is logged as PARTIAL_DELIVERY_FAILURE but the run
// still succeeds, because the report made it to the sink.
func (r *Runner) RunAnalysis(ctx context.Context, cfg Config) (*api.DriftReport, error) {
	// Config problems abort before any I/O.
	if err := cfg.Validate(); err != nil {
		runsTotal.WithLabelValues("invalid_config").Inc()
		return nil, err
	}
	cls, err := classifier.New(cfg.Thresholds)
	if err != nil {
		runsTotal.WithLabelValues("invalid_config").Inc()
		return nil, err
	}

	// The reference is loaded once and reused for the whole run.
	ref, err := r.refSource.Load(ctx)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	window, err := r.readWindow(ctx, cfg)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	r.log.Info("window loaded",
		"model_version", cfg.ModelVersion,
		"records", window.Size(),
		"window_start", window.Start,
		"window_end", window.End,
	)

	metrics, err := analyzer.New(cfg.MinRecords, cfg.MaxConcurrency).Analyze(ctx, ref, window)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeInsufficientData) {
			r.log.Info("run skipped", "reason", err.Error())
			runsTotal.WithLabelValues("skipped").Inc()
		} else {
			runsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	report := cls.Classify(cfg.ModelVersion, window, metrics)
	for _, res := range report.Results {
		if !res.NotApplicable {
			driftScore.WithLabelValues(res.FeatureName, string(res.Kind)).Set(res.MetricValue)
		}
	}

	// The report is the primary observability artifact: it is persisted
	// before alerting so nothing in the alert path can lose it.
	if err := r.sink.WriteReport(ctx, report); err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	r.log.Info("report written",
		"report_id", report.ID,
		"overall", report.Overall.String(),
		"entries", len(report.Results),
	)

	event, dispatchErr := r.dispatcher.Dispatch(ctx, report)
	if event != nil {
		alertsTotal.WithLabelValues(event.Severity.String()).Inc()
	}
	if dispatchErr != nil {
		// Partial delivery: the report is safe, so the run still counts
		// as successful.
		r.log.Warn("alert delivery incomplete", "error", dispatchErr)
	}

	runsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

func (r *Runner) readWindow(ctx context.Context, cfg Config) (*api.DriftWindow, error) {
	if cfg.WindowCount > 0 {
		return r.records.ReadLast(ctx, cfg.WindowCount)
	}
	end := r.now().UTC()
	return r.records.ReadWindow(ctx, end.Add(-cfg.Lookback), end)
}
