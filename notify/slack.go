// Package notify delivers alert messages to a Slack-compatible incoming
// webhook. Delivery uses the platform HTTP client's bounded retry budget;
// a dead webhook degrades the run to a partial-delivery warning, never a
// failure.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vigil/pkg/api"
	"vigil/pkg/errors"
	"vigil/pkg/platform"
)

const (
	botUsername    = "vigil-drift-bot"
	defaultRetries = 2
	defaultTimeout = 5 * time.Second
)

// slackPayload is the incoming-webhook message shape.
type slackPayload struct {
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
	Text      string `json:"text"`
}

// SlackSink posts alerts to a webhook URL.
type SlackSink struct {
	webhookURL string
	client     *platform.HTTPClient
	log        *slog.Logger
}

// NewSlackSink creates a sink for the given webhook URL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{
		webhookURL: webhookURL,
		client:     platform.NewHTTPClient(defaultRetries, defaultTimeout),
		log:        slog.Default(),
	}
}

// Send posts one alert message. An unconfigured webhook is a no-op so
// local setups run without alerting wired up.
func (s *SlackSink) Send(ctx context.Context, message string, severity api.Severity) error {
	if s.webhookURL == "" {
		s.log.Warn("webhook URL not configured, skipping alert delivery")
		return nil
	}

	body, err := json.Marshal(slackPayload{
		Username:  botUsername,
		IconEmoji: iconFor(severity),
		Text:      message,
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	resp, err := s.client.PostJSON(ctx, s.webhookURL, body)
	if err != nil {
		return errors.NewSinkUnavailable("notification sink", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.NewSinkUnavailable("notification sink", fmt.Errorf("webhook returned %d", resp.StatusCode))
	}
	s.log.Info("alert delivered", "status", resp.StatusCode, "severity", severity.String())
	return nil
}

func iconFor(severity api.Severity) string {
	if severity >= api.SeverityCritical {
		return ":rotating_light:"
	}
	return ":warning:"
}
