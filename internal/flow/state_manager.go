// Package flow implements the per-sender conversation state machine that
// drives the GymBot dialog: input routing, step validation and transitions,
// and outbound response emission.
package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gymbro/gymbot/internal/models"
	"github.com/gymbro/gymbot/internal/store"
)

// StateManager mediates conversation-state access on top of a store.Store and
// serializes read-modify-write cycles per sender. A second message from the
// same sender blocks until the first is fully processed; senders never block
// each other.
type StateManager struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStateManager creates a StateManager backed by the given store.
func NewStateManager(st store.Store) *StateManager {
	slog.Debug("Creating StateManager")
	return &StateManager{
		store: st,
		locks: make(map[string]*sync.Mutex),
	}
}

// senderLock returns the mutex dedicated to one sender, creating it on first use.
func (sm *StateManager) senderLock(sender string) *sync.Mutex {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	lock, ok := sm.locks[sender]
	if !ok {
		lock = &sync.Mutex{}
		sm.locks[sender] = lock
	}
	return lock
}

// WithSenderLock runs fn while holding the sender's lock, giving the caller an
// atomic read-modify-write window ("at most one in-flight transition per sender").
func (sm *StateManager) WithSenderLock(sender string, fn func() error) error {
	lock := sm.senderLock(sender)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// Get retrieves the active conversation state for a sender, or nil when the
// sender has no active flow.
func (sm *StateManager) Get(ctx context.Context, sender string) (*models.ConversationState, error) {
	state, err := sm.store.GetConversationState(sender)
	if err != nil {
		slog.Error("StateManager Get error", "error", err, "sender", sender)
		return nil, err
	}
	return state, nil
}

// Begin creates and persists a fresh conversation state at the given step.
func (sm *StateManager) Begin(ctx context.Context, sender string, step models.Step) (*models.ConversationState, error) {
	now := time.Now()
	state := &models.ConversationState{
		Sender:    sender,
		Step:      step,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := sm.store.SaveConversationState(*state); err != nil {
		slog.Error("StateManager Begin save error", "error", err, "sender", sender, "step", step)
		return nil, err
	}
	slog.Info("StateManager flow started", "sender", sender, "step", step)
	return state, nil
}

// Save persists a mutated conversation state, refreshing its update time.
func (sm *StateManager) Save(ctx context.Context, state *models.ConversationState) error {
	state.UpdatedAt = time.Now()
	if err := sm.store.SaveConversationState(*state); err != nil {
		slog.Error("StateManager Save error", "error", err, "sender", state.Sender, "step", state.Step)
		return err
	}
	slog.Debug("StateManager Save succeeded", "sender", state.Sender, "step", state.Step)
	return nil
}

// Clear removes the active conversation state for a sender (flow completed or
// cancelled).
func (sm *StateManager) Clear(ctx context.Context, sender string) error {
	if err := sm.store.DeleteConversationState(sender); err != nil {
		slog.Error("StateManager Clear error", "error", err, "sender", sender)
		return err
	}
	slog.Info("StateManager flow cleared", "sender", sender)
	return nil
}

// MarkFinalized adds the sender to the finalized set.
func (sm *StateManager) MarkFinalized(ctx context.Context, sender string) error {
	if err := sm.store.MarkFinalized(sender); err != nil {
		slog.Error("StateManager MarkFinalized error", "error", err, "sender", sender)
		return err
	}
	return nil
}

// ClearFinalized removes the sender from the finalized set.
func (sm *StateManager) ClearFinalized(ctx context.Context, sender string) error {
	if err := sm.store.ClearFinalized(sender); err != nil {
		slog.Error("StateManager ClearFinalized error", "error", err, "sender", sender)
		return err
	}
	return nil
}

// IsFinalized reports whether the sender explicitly ended the conversation.
func (sm *StateManager) IsFinalized(ctx context.Context, sender string) (bool, error) {
	finalized, err := sm.store.IsFinalized(sender)
	if err != nil {
		slog.Error("StateManager IsFinalized error", "error", err, "sender", sender)
		return false, err
	}
	return finalized, nil
}
