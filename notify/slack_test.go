package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/api"
	"vigil/pkg/errors"
)

func TestSlackSink_SendsWebhookPayload(t *testing.T) {
	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewSlackSink(server.URL)
	err := sink.Send(context.Background(), "age drifted critical", api.SeverityCritical)
	require.NoError(t, err)

	assert.Equal(t, botUsername, got.Username)
	assert.Equal(t, ":rotating_light:", got.IconEmoji)
	assert.Contains(t, got.Text, "age")
}

func TestSlackSink_WarningIcon(t *testing.T) {
	var got slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	require.NoError(t, NewSlackSink(server.URL).Send(context.Background(), "m", api.SeverityWarning))
	assert.Equal(t, ":warning:", got.IconEmoji)
}

func TestSlackSink_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewSlackSink(server.URL).Send(context.Background(), "m", api.SeverityWarning)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlackSink_BoundedRetriesThenSinkUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewSlackSink(server.URL).Send(context.Background(), "m", api.SeverityCritical)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSinkUnavailable))
	// Initial attempt plus the bounded retry budget, never more.
	assert.Equal(t, int32(defaultRetries+1), calls.Load())
}

func TestSlackSink_UnconfiguredIsNoOp(t *testing.T) {
	err := NewSlackSink("").Send(context.Background(), "m", api.SeverityCritical)
	assert.NoError(t, err)
}
