package dispatcher

import (
	"context"
	"sync"
	"time"

	"vigil/pkg/api"
)

// AlertState is the last alert recorded for one scope (a feature name,
// the prediction output, or the overall report).
type AlertState struct {
	Severity    api.Severity `json:"severity"`
	TriggeredAt time.Time    `json:"triggered_at"`
}

// HistoryStore persists the last alert per scope. Implementations must
// make Update atomic per scope and last-writer-wins by TriggeredAt, so
// overlapping runs cannot corrupt each other's view.
type HistoryStore interface {
	Get(ctx context.Context, scope string) (*AlertState, error)
	Update(ctx context.Context, scope string, next AlertState) error
}

// MemoryHistory is the in-process HistoryStore used by single-instance
// deployments and tests. State does not survive restarts; production
// server mode uses the Redis store instead.
type MemoryHistory struct {
	mu     sync.Mutex
	states map[string]AlertState
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{states: make(map[string]AlertState)}
}

func (m *MemoryHistory) Get(ctx context.Context, scope string) (*AlertState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[scope]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryHistory) Update(ctx context.Context, scope string, next AlertState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.states[scope]; ok && prev.TriggeredAt.After(next.TriggeredAt) {
		// A more recent run already recorded its alert; keep it.
		return nil
	}
	m.states[scope] = next
	return nil
}
