package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/store"
)

// StateManager persists per-session conversation state through a Store
// backend. Each session has exactly one active conversation step.
type StateManager struct {
	store store.Store
}

// NewStateManager creates a StateManager backed by a Store.
func NewStateManager(st store.Store) *StateManager {
	return &StateManager{store: st}
}

// CurrentStep retrieves the current conversation step for a session.
// Sessions without recorded state are idle.
func (sm *StateManager) CurrentStep(ctx context.Context, sessionID string) (models.StateType, error) {
	state, err := sm.store.GetFlowState(sessionID, models.FlowTypeJournal)
	if err != nil {
		slog.Error("StateManager CurrentStep error", "error", err, "sessionID", sessionID)
		return "", err
	}
	if state == nil {
		return models.StepIdle, nil
	}
	return state.CurrentState, nil
}

// SetStep updates the current conversation step for a session, creating the
// state record if needed.
func (sm *StateManager) SetStep(ctx context.Context, sessionID string, step models.StateType) error {
	state, err := sm.store.GetFlowState(sessionID, models.FlowTypeJournal)
	if err != nil {
		slog.Error("StateManager SetStep get error", "error", err, "sessionID", sessionID)
		return err
	}

	now := time.Now()
	if state == nil {
		state = &models.FlowState{
			SessionID:    sessionID,
			FlowType:     models.FlowTypeJournal,
			CurrentState: step,
			StateData:    make(map[models.DataKey]string),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else {
		state.CurrentState = step
		state.UpdatedAt = now
	}

	if err := sm.store.SaveFlowState(*state); err != nil {
		slog.Error("StateManager SetStep save error", "error", err, "sessionID", sessionID, "step", step)
		return err
	}
	slog.Debug("StateManager SetStep succeeded", "sessionID", sessionID, "step", step)
	return nil
}

// GetData retrieves state-scoped data for a session. Missing keys return "".
func (sm *StateManager) GetData(ctx context.Context, sessionID string, key models.DataKey) (string, error) {
	state, err := sm.store.GetFlowState(sessionID, models.FlowTypeJournal)
	if err != nil {
		slog.Error("StateManager GetData error", "error", err, "sessionID", sessionID, "key", key)
		return "", err
	}
	if state == nil || state.StateData == nil {
		return "", nil
	}
	return state.StateData[key], nil
}

// SetData stores state-scoped data for a session, creating the state record
// if needed.
func (sm *StateManager) SetData(ctx context.Context, sessionID string, key models.DataKey, value string) error {
	state, err := sm.store.GetFlowState(sessionID, models.FlowTypeJournal)
	if err != nil {
		slog.Error("StateManager SetData get error", "error", err, "sessionID", sessionID, "key", key)
		return err
	}

	now := time.Now()
	if state == nil {
		state = &models.FlowState{
			SessionID:    sessionID,
			FlowType:     models.FlowTypeJournal,
			CurrentState: models.StepIdle,
			StateData:    map[models.DataKey]string{key: value},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else {
		if state.StateData == nil {
			state.StateData = make(map[models.DataKey]string)
		}
		state.StateData[key] = value
		state.UpdatedAt = now
	}

	if err := sm.store.SaveFlowState(*state); err != nil {
		slog.Error("StateManager SetData save error", "error", err, "sessionID", sessionID, "key", key)
		return err
	}
	return nil
}

// Reset removes all conversation state for a session.
func (sm *StateManager) Reset(ctx context.Context, sessionID string) error {
	if err := sm.store.DeleteFlowState(sessionID, models.FlowTypeJournal); err != nil {
		slog.Error("StateManager Reset error", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("StateManager Reset succeeded", "sessionID", sessionID)
	return nil
}
