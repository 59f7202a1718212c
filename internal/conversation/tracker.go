package conversation

import (
	"context"
	"log/slog"
	"sync"
)

const lockShards = 64

// Tracker is the dispatcher's view of dialogue state. Lock serializes the
// updates of one user while different users proceed concurrently.
type Tracker struct {
	store  StateStore
	logger *slog.Logger
	shards [lockShards]sync.Mutex
}

// NewTracker wraps store. A nil store means process memory.
func NewTracker(store StateStore, logger *slog.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, logger: logger.With("component", "conversation")}
}

// Lock acquires the shard of userID and returns its release function.
func (t *Tracker) Lock(userID int64) (unlock func()) {
	idx := userID % lockShards
	if idx < 0 {
		idx = -idx
	}
	mu := &t.shards[idx]
	mu.Lock()
	return mu.Unlock
}

// Get returns the user's state. Store failures read as start.
func (t *Tracker) Get(ctx context.Context, userID int64) State {
	s, err := t.store.Get(ctx, userID)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to load conversation state", "error", err, "user_id", userID)
		return StateStart
	}
	return s
}

// Set stores the user's state. Failures are logged; the dialogue continues.
func (t *Tracker) Set(ctx context.Context, userID int64, state State) {
	if err := t.store.Set(ctx, userID, state); err != nil {
		t.logger.ErrorContext(ctx, "Failed to save conversation state", "error", err, "user_id", userID, "state", state)
	}
}

// Reset returns the user to start.
func (t *Tracker) Reset(ctx context.Context, userID int64) {
	t.Set(ctx, userID, StateStart)
}

// Apply moves the user along event and returns the new state.
func (t *Tracker) Apply(ctx context.Context, userID int64, event Event) State {
	next := Next(t.Get(ctx, userID), event)
	t.Set(ctx, userID, next)
	return next
}
