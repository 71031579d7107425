package monitor

import (
	"time"

	"vigil/internal/analyzer"
	"vigil/internal/classifier"
	"vigil/internal/dispatcher"
	"vigil/pkg/errors"
)

// DefaultLookback matches the original 24h batch window.
const DefaultLookback = 24 * time.Hour

// Config enumerates everything one monitoring run needs. It is validated
// in full before any I/O happens.
type Config struct {
	ModelVersion string

	// Window selection: WindowCount takes precedence when positive,
	// otherwise the run covers [now-Lookback, now).
	Lookback    time.Duration
	WindowCount int

	MinRecords     int
	Thresholds     classifier.Thresholds
	Cooldown       time.Duration
	MaxConcurrency int
}

// DefaultConfig returns the standard monitoring configuration.
func DefaultConfig() Config {
	return Config{
		ModelVersion:   "v1.0",
		Lookback:       DefaultLookback,
		MinRecords:     analyzer.DefaultMinRecords,
		Thresholds:     classifier.DefaultThresholds(),
		Cooldown:       dispatcher.DefaultCooldown,
		MaxConcurrency: analyzer.DefaultMaxConcurrency,
	}
}

// Validate fails fast with INVALID_CONFIGURATION on any malformed knob.
func (c Config) Validate() error {
	if c.ModelVersion == "" {
		return errors.NewInvalidConfiguration("model version must be set")
	}
	if c.WindowCount <= 0 && c.Lookback <= 0 {
		return errors.NewInvalidConfiguration("either a window count or a lookback duration is required")
	}
	if c.WindowCount < 0 {
		return errors.NewInvalidConfiguration("window count must not be negative")
	}
	if c.MinRecords <= 0 {
		return errors.NewInvalidConfiguration("minimum record count must be positive")
	}
	if c.MaxConcurrency < 0 {
		return errors.NewInvalidConfiguration("max concurrency must not be negative")
	}
	if c.Cooldown < 0 {
		return errors.NewInvalidConfiguration("cooldown must not be negative")
	}
	return c.Thresholds.Validate()
}
