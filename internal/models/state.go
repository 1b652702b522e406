// Package models defines state management structures for journal conversations.
package models

import "time"

// FlowType represents a specific type of conversation flow.
type FlowType string

// StateType represents a conversation step within a flow.
type StateType string

// DataKey represents a key for storing state-specific data.
type DataKey string

// Flow type constants.
const (
	FlowTypeJournal FlowType = "journal"
)

// Conversation step constants for the journal flow. Exactly one step is
// active per session at any time. Greeting and reflection offers complete
// within a single handler call, so only the steps that persist between
// inbound messages are modeled.
const (
	StepIdle                 StateType = "IDLE"
	StepCollecting           StateType = "COLLECTING"
	StepReflectionCollecting StateType = "REFLECTION_COLLECTING"
)

// Data key constants for the journal flow.
const (
	// DataKeyActiveCategory holds the category entries are collected under.
	DataKeyActiveCategory DataKey = "activeCategory"
)

// FlowState represents the persisted conversation state of one session.
type FlowState struct {
	SessionID    string            `json:"session_id"`
	FlowType     FlowType          `json:"flow_type"`
	CurrentState StateType         `json:"current_state"`
	StateData    map[DataKey]string `json:"state_data,omitempty"` // Additional state-specific data
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
