// Package rollback captures pre-execution checkpoints for reversible actions
// and replays them through registered reversers when an execution fails.
package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
)

// Checkpoint is the captured pre-execution state for one action.
type Checkpoint struct {
	ID         string         `json:"id"`
	ActionID   string         `json:"action_id"`
	DecisionID string         `json:"decision_id"`
	State      map[string]any `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Capturer produces the opaque state map to checkpoint before an action of
// its registered type executes.
type Capturer func(ctx context.Context, action *autonomy.Action) (map[string]any, error)

// Reverser undoes an executed action from its checkpoint.
type Reverser func(ctx context.Context, action *autonomy.Action, checkpoint *Checkpoint) error

// Manager stores checkpoints and runs reversers. Checkpoints are consumed by
// reads, never deleted: a rollback can be re-examined after the fact.
type Manager struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint // keyed by action id
	capturers   map[string]Capturer    // keyed by action type
	reversers   map[string]Reverser    // keyed by action type
	logger      *slog.Logger
}

// NewManager creates an empty rollback manager.
func NewManager() *Manager {
	return &Manager{
		checkpoints: make(map[string]*Checkpoint),
		capturers:   make(map[string]Capturer),
		reversers:   make(map[string]Reverser),
		logger:      slog.Default().With("component", "rollback"),
	}
}

// RegisterCapturer installs a state capturer for an action type.
func (m *Manager) RegisterCapturer(actionType string, capturer Capturer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturers[actionType] = capturer
}

// RegisterReverser installs a reverser for an action type.
func (m *Manager) RegisterReverser(actionType string, reverser Reverser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reversers[actionType] = reverser
}

// Capture creates and stores a checkpoint for the action. When no capturer
// is registered for the action type, the checkpoint records the action's own
// parameters as a baseline.
func (m *Manager) Capture(ctx context.Context, action *autonomy.Action, decisionID string) (*Checkpoint, error) {
	m.mu.RLock()
	capturer := m.capturers[action.Type]
	m.mu.RUnlock()

	var (
		captured map[string]any
		err      error
	)
	if capturer != nil {
		captured, err = capturer(ctx, action)
		if err != nil {
			return nil, fmt.Errorf("capture state for %s: %w", action.Type, err)
		}
	} else {
		captured = map[string]any{"parameters": action.Parameters}
	}

	checkpoint := &Checkpoint{
		ID:         uuid.New().String(),
		ActionID:   action.ID,
		DecisionID: decisionID,
		State:      captured,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.checkpoints[action.ID] = checkpoint
	m.mu.Unlock()

	m.logger.Debug("checkpoint captured",
		"checkpoint_id", checkpoint.ID,
		"action_id", action.ID,
	)

	return checkpoint, nil
}

// Get returns the checkpoint for an action id, or nil when none exists.
func (m *Manager) Get(actionID string) *Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoints[actionID]
}

// Rollback replays the checkpoint for an action through its registered
// reverser. It reports whether a rollback actually ran; having no checkpoint
// or no reverser is not an error, it just means nothing could be undone.
func (m *Manager) Rollback(ctx context.Context, action *autonomy.Action) (bool, error) {
	m.mu.RLock()
	checkpoint := m.checkpoints[action.ID]
	reverser := m.reversers[action.Type]
	m.mu.RUnlock()

	if checkpoint == nil {
		m.logger.Warn("no checkpoint to roll back", "action_id", action.ID)
		return false, nil
	}
	if reverser == nil {
		m.logger.Warn("no reverser registered for action type",
			"action_id", action.ID,
			"action_type", action.Type,
		)
		return false, nil
	}

	if err := reverser(ctx, action, checkpoint); err != nil {
		return false, fmt.Errorf("rollback %s: %w", action.ID, err)
	}

	m.logger.Info("action rolled back",
		"action_id", action.ID,
		"checkpoint_id", checkpoint.ID,
	)

	return true, nil
}
