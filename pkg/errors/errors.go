// Package errors provides severity-aware error types for the monitor.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MonitorError is a structured error with context.
type MonitorError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Scope       string   `json:"scope,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Cause       error    `json:"-"`
}

func (e *MonitorError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("[%s] %s: %s (scope: %s)", e.Severity, e.Code, e.Message, e.Scope)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
}

func (e *MonitorError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeInsufficientData       = "INSUFFICIENT_DATA"
	ErrCodeInvalidConfiguration   = "INVALID_CONFIGURATION"
	ErrCodeStoreUnavailable       = "STORE_UNAVAILABLE"
	ErrCodeSinkUnavailable        = "SINK_UNAVAILABLE"
	ErrCodePartialDeliveryFailure = "PARTIAL_DELIVERY_FAILURE"
)

// NewInsufficientData signals a window too small to analyze. The run is
// skipped, not failed; the scheduler retries on its next cycle.
func NewInsufficientData(got, want int) *MonitorError {
	return &MonitorError{
		Code:        ErrCodeInsufficientData,
		Message:     fmt.Sprintf("window has %d records, need at least %d", got, want),
		Severity:    SeverityInfo,
		Recoverable: true,
	}
}

// NewInvalidConfiguration signals a malformed config. Fatal: the run must
// abort before any I/O.
func NewInvalidConfiguration(detail string) *MonitorError {
	return &MonitorError{
		Code:        ErrCodeInvalidConfiguration,
		Message:     detail,
		Severity:    SeverityFatal,
		Recoverable: false,
	}
}

// NewStoreUnavailable wraps a record-store connection failure after
// bounded retries were exhausted.
func NewStoreUnavailable(scope string, cause error) *MonitorError {
	return &MonitorError{
		Code:        ErrCodeStoreUnavailable,
		Message:     fmt.Sprintf("store unreachable: %v", cause),
		Severity:    SeverityError,
		Scope:       scope,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewSinkUnavailable wraps a sink write failure after bounded retries.
func NewSinkUnavailable(scope string, cause error) *MonitorError {
	return &MonitorError{
		Code:        ErrCodeSinkUnavailable,
		Message:     fmt.Sprintf("sink unreachable: %v", cause),
		Severity:    SeverityError,
		Scope:       scope,
		Recoverable: true,
		Cause:       cause,
	}
}

// NewPartialDeliveryFailure marks a run where the report was persisted but
// the alert was not delivered. The run still counts as successful.
func NewPartialDeliveryFailure(cause error) *MonitorError {
	return &MonitorError{
		Code:        ErrCodePartialDeliveryFailure,
		Message:     fmt.Sprintf("report written but alert delivery failed: %v", cause),
		Severity:    SeverityWarning,
		Recoverable: true,
		Cause:       cause,
	}
}

// HasCode reports whether err (or anything it wraps) is a MonitorError
// with the given code.
func HasCode(err error, code string) bool {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me.Code == code
	}
	return false
}
