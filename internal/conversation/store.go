package conversation

import (
	"context"
	"sync"
)

// StateStore persists dialogue state by Telegram user id.
// A missing entry reads as StateStart.
type StateStore interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, state State) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore keeps state in process memory. Restarting loses it.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

// Get implements StateStore.
func (m *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[userID]; ok {
		return s, nil
	}
	return StateStart, nil
}

// Set implements StateStore. Setting start removes the entry.
func (m *MemoryStore) Set(_ context.Context, userID int64, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == StateStart {
		delete(m.states, userID)
		return nil
	}
	m.states[userID] = state
	return nil
}

// Delete implements StateStore.
func (m *MemoryStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}
