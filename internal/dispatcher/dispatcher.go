// Package dispatcher decides whether a drift report warrants a
// notification and suppresses noisy repeats. A sustained, unchanging
// drift condition alerts once per cooldown window; an escalation alerts
// immediately.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/api"
	"vigil/pkg/errors"
)

// OverallScope is the history key covering the report as a whole.
const OverallScope = "overall"

// DefaultCooldown between repeated alerts for an unchanged condition.
const DefaultCooldown = 6 * time.Hour

// Notifier delivers a formatted alert. Implementations own their retry
// budget; delivery failure here is never fatal to the run.
type Notifier interface {
	Send(ctx context.Context, message string, severity api.Severity) error
}

// Dispatcher applies the trigger policy against alert history.
type Dispatcher struct {
	history  HistoryStore
	notifier Notifier
	cooldown time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func New(history HistoryStore, notifier Notifier, cooldown time.Duration) *Dispatcher {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Dispatcher{
		history:  history,
		notifier: notifier,
		cooldown: cooldown,
		log:      slog.Default(),
		now:      time.Now,
	}
}

// Dispatch evaluates the report. It returns the AlertEvent when one was
// triggered (even if delivery then failed), nil when the policy
// suppressed alerting. A delivery failure comes back as
// PARTIAL_DELIVERY_FAILURE; the caller treats it as non-fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, report *api.DriftReport) (*api.AlertEvent, error) {
	if report.Overall < api.SeverityWarning {
		return nil, nil
	}

	now := d.now().UTC()
	drifted := report.DriftedFeatures()

	scopes := make(map[string]api.Severity, len(drifted)+1)
	scopes[OverallScope] = report.Overall
	for _, res := range drifted {
		scopes[scopeKey(res)] = res.Severity
	}

	fire := false
	for scope, severity := range scopes {
		prev, err := d.history.Get(ctx, scope)
		if err != nil {
			// History unavailable: fail open. A duplicate alert is cheaper
			// than a silent critical.
			d.log.Warn("alert history unavailable, alerting anyway", "scope", scope, "error", err)
			fire = true
			break
		}
		if shouldFire(prev, severity, now, d.cooldown) {
			fire = true
			break
		}
	}

	if !fire {
		d.log.Info("alert suppressed by cooldown", "report_id", report.ID, "overall", report.Overall.String())
		return nil, nil
	}

	event := &api.AlertEvent{
		ID:          uuid.New(),
		ReportID:    report.ID,
		Scope:       OverallScope,
		Severity:    report.Overall,
		Message:     formatMessage(report, drifted),
		TriggeredAt: now,
	}

	sendErr := d.notifier.Send(ctx, event.Message, event.Severity)

	// History updates happen regardless of delivery outcome so a flapping
	// sink cannot cause an alert storm.
	for scope, severity := range scopes {
		if err := d.history.Update(ctx, scope, AlertState{Severity: severity, TriggeredAt: now}); err != nil {
			d.log.Warn("failed to update alert history", "scope", scope, "error", err)
		}
	}

	if sendErr != nil {
		d.log.Error("alert delivery failed", "alert_id", event.ID, "error", sendErr)
		return event, errors.NewPartialDeliveryFailure(sendErr)
	}

	d.log.Info("alert dispatched", "alert_id", event.ID, "severity", event.Severity.String())
	return event, nil
}

// shouldFire implements the trigger policy for one scope: alert when
// there is no prior state, when severity escalated, or when the cooldown
// has elapsed.
func shouldFire(prev *AlertState, severity api.Severity, now time.Time, cooldown time.Duration) bool {
	if prev == nil {
		return true
	}
	if severity > prev.Severity {
		return true
	}
	return now.Sub(prev.TriggeredAt) >= cooldown
}

func scopeKey(res api.FeatureDriftResult) string {
	if res.Kind == api.EntryFeature {
		return res.FeatureName
	}
	return string(res.Kind) + ":" + res.FeatureName
}

// formatMessage builds the human-readable summary posted to the
// notification sink.
func formatMessage(report *api.DriftReport, drifted []api.FeatureDriftResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: Drift detected for model %s (severity: %s)\n", report.ModelVersion, report.Overall)

	parts := make([]string, 0, len(drifted))
	for _, res := range drifted {
		label := res.FeatureName
		if res.Kind != api.EntryFeature {
			label = string(res.Kind)
		}
		parts = append(parts, fmt.Sprintf("%s: %s (PSI %.4f)", label, res.Severity, res.MetricValue))
	}
	fmt.Fprintf(&b, "Drifted: %s\n", strings.Join(parts, "; "))
	fmt.Fprintf(&b, "Window: %s -> %s (%d records)",
		report.WindowStart.Format("2006-01-02 15:04:05"),
		report.WindowEnd.Format("2006-01-02 15:04:05"),
		report.WindowSize,
	)
	return b.String()
}
