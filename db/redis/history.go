// Package redis backs the alert history with Redis so cooldown state
// survives process restarts and stays consistent across overlapping runs.
// Updates use an optimistic WATCH transaction with last-writer-wins by
// trigger recency.
package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/dispatcher"
)

const (
	keyPrefix = "vigil:alert:last:"

	// txRetries bounds the optimistic-lock retry budget.
	txRetries = 5

	// DefaultTTL ages out history for scopes that stop alerting.
	DefaultTTL = 30 * 24 * time.Hour
)

// History is the Redis-backed dispatcher.HistoryStore.
type History struct {
	client *redis.Client
	ttl    time.Duration
}

// NewHistory connects to Redis.
func NewHistory(addr, password string, db int) *History {
	return &History{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: DefaultTTL,
	}
}

func (h *History) Ping(ctx context.Context) error {
	return h.client.Ping(ctx).Err()
}

func (h *History) Close() error {
	return h.client.Close()
}

// Get returns the last alert state for a scope, or nil when none exists.
func (h *History) Get(ctx context.Context, scope string) (*dispatcher.AlertState, error) {
	data, err := h.client.Get(ctx, keyPrefix+scope).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alert history: %w", err)
	}
	var st dispatcher.AlertState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt alert history for %s: %w", scope, err)
	}
	return &st, nil
}

// Update stores the new state unless a more recent one is already
// present. Concurrent writers race through WATCH; the loser retries
// against the fresh value, bounded by txRetries.
func (h *History) Update(ctx context.Context, scope string, next dispatcher.AlertState) error {
	key := keyPrefix + scope

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil && !stderrors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var prev dispatcher.AlertState
			if jsonErr := json.Unmarshal(data, &prev); jsonErr == nil && prev.TriggeredAt.After(next.TriggeredAt) {
				// A newer run already recorded its alert.
				return nil
			}
		}

		encoded, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, h.ttl)
			return nil
		})
		return err
	}

	var lastErr error
	for i := 0; i < txRetries; i++ {
		lastErr = h.client.Watch(ctx, txn, key)
		if lastErr == nil {
			return nil
		}
		if !stderrors.Is(lastErr, redis.TxFailedErr) {
			break
		}
	}
	return fmt.Errorf("failed to update alert history for %s: %w", scope, lastErr)
}
