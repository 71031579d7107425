// Package clickhouse persists drift reports for the dashboard. Columnar
// storage fits the access pattern: reports are append-only, timestamped,
// and queried as time series per model version. Writes are at-least-once;
// rows are keyed by report ID so re-writes collapse on merge.
package clickhouse

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"

	"vigil/pkg/api"
	"vigil/pkg/errors"
)

// metricScale fixes the stored precision of metric values.
const metricScale = 6

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "vigil",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store implements the report sink on ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore connects to ClickHouse.
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// EnsureSchema creates the report tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const reports = `
		CREATE TABLE IF NOT EXISTS drift_reports (
			id            UUID,
			model_version String,
			run_at        DateTime64(3, 'UTC'),
			window_start  DateTime64(3, 'UTC'),
			window_end    DateTime64(3, 'UTC'),
			window_size   UInt32,
			overall       String,
			created_at    DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree
		ORDER BY (model_version, run_at, id)`

	const entries = `
		CREATE TABLE IF NOT EXISTS drift_report_entries (
			report_id      UUID,
			position       UInt16,
			feature_name   String,
			kind           String,
			metric_value   Decimal(18, 6),
			severity       String,
			not_applicable UInt8
		) ENGINE = ReplacingMergeTree
		ORDER BY (report_id, position)`

	if err := s.conn.Exec(ctx, reports); err != nil {
		return fmt.Errorf("failed to create drift_reports: %w", err)
	}
	if err := s.conn.Exec(ctx, entries); err != nil {
		return fmt.Errorf("failed to create drift_report_entries: %w", err)
	}
	return nil
}

// WriteReport appends one report and its entries. Safe to call again with
// the same report; duplicate rows collapse by key.
func (s *Store) WriteReport(ctx context.Context, report *api.DriftReport) error {
	const insert = `
		INSERT INTO drift_reports (
			id, model_version, run_at, window_start, window_end,
			window_size, overall, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	err := s.conn.Exec(ctx, insert,
		report.ID,
		report.ModelVersion,
		report.RunAt,
		report.WindowStart,
		report.WindowEnd,
		uint32(report.WindowSize),
		report.Overall.String(),
		time.Now().UTC(),
	)
	if err != nil {
		return errors.NewSinkUnavailable("report sink", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO drift_report_entries (
			report_id, position, feature_name, kind, metric_value,
			severity, not_applicable
		)`)
	if err != nil {
		return errors.NewSinkUnavailable("report sink", err)
	}
	for i, res := range report.Results {
		err := batch.Append(
			report.ID,
			uint16(i),
			res.FeatureName,
			string(res.Kind),
			decimal.NewFromFloat(res.MetricValue).Round(metricScale),
			res.Severity.String(),
			boolToUInt8(res.NotApplicable),
		)
		if err != nil {
			return errors.NewSinkUnavailable("report sink", err)
		}
	}
	if err := batch.Send(); err != nil {
		return errors.NewSinkUnavailable("report sink", err)
	}
	return nil
}

// LatestReport returns the most recent report for a model version, or nil
// when none exists. An empty version matches any model.
func (s *Store) LatestReport(ctx context.Context, modelVersion string) (*api.DriftReport, error) {
	query := `
		SELECT id, model_version, run_at, window_start, window_end, window_size, overall
		FROM drift_reports FINAL`
	args := []any{}
	if modelVersion != "" {
		query += ` WHERE model_version = ?`
		args = append(args, modelVersion)
	}
	query += ` ORDER BY run_at DESC LIMIT 1`

	row := s.conn.QueryRow(ctx, query, args...)
	report, err := scanReport(row)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	if err := s.loadEntries(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ReportHistory returns report headers (no entries) newest first, for the
// dashboard's trend view.
func (s *Store) ReportHistory(ctx context.Context, modelVersion string, limit int) ([]*api.DriftReport, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, model_version, run_at, window_start, window_end, window_size, overall
		FROM drift_reports FINAL`
	args := []any{}
	if modelVersion != "" {
		query += ` WHERE model_version = ?`
		args = append(args, modelVersion)
	}
	query += ` ORDER BY run_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query report history: %w", err)
	}
	defer rows.Close()

	var reports []*api.DriftReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (s *Store) loadEntries(ctx context.Context, report *api.DriftReport) error {
	const query = `
		SELECT feature_name, kind, metric_value, severity, not_applicable
		FROM drift_report_entries FINAL
		WHERE report_id = ?
		ORDER BY position ASC`

	rows, err := s.conn.Query(ctx, query, report.ID)
	if err != nil {
		return fmt.Errorf("failed to query report entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			res           api.FeatureDriftResult
			kind          string
			metric        decimal.Decimal
			severity      string
			notApplicable uint8
		)
		if err := rows.Scan(&res.FeatureName, &kind, &metric, &severity, &notApplicable); err != nil {
			return fmt.Errorf("failed to scan report entry: %w", err)
		}
		res.Kind = api.EntryKind(kind)
		res.MetricValue = metric.InexactFloat64()
		res.NotApplicable = notApplicable == 1
		if res.Severity, err = api.ParseSeverity(severity); err != nil {
			return fmt.Errorf("report %s: %w", report.ID, err)
		}
		report.Results = append(report.Results, res)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*api.DriftReport, error) {
	var (
		report     api.DriftReport
		windowSize uint32
		overall    string
	)
	err := row.Scan(
		&report.ID, &report.ModelVersion, &report.RunAt,
		&report.WindowStart, &report.WindowEnd, &windowSize, &overall,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}
	report.WindowSize = int(windowSize)
	if report.Overall, err = api.ParseSeverity(overall); err != nil {
		return nil, err
	}
	return &report, nil
}

func isNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
