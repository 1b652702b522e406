// Package models defines the core data structures for the journal bot.
//
// It includes the journal message record, time buckets for the external
// archive, reminder preferences, and the inbound/outbound message shapes
// shared across modules.
package models

import (
	"errors"
	"time"
)

// Category tags a journal entry with the kind of content it records.
type Category string

const (
	// CategoryExperience marks entries about the user's day-to-day experiences.
	CategoryExperience Category = "experience"
	// CategoryIdea marks entries capturing ideas.
	CategoryIdea Category = "idea"
	// CategoryGratitude marks entries recording gratitude.
	CategoryGratitude Category = "gratitude"
	// CategoryReflection marks entries answering curated reflection questions.
	CategoryReflection Category = "reflection"
	// CategoryUncategorized is the fallback when no conversation context supplies a category.
	CategoryUncategorized Category = "uncategorized"
)

// Categories returns every supported category.
func Categories() []Category {
	return []Category{CategoryExperience, CategoryIdea, CategoryGratitude, CategoryReflection, CategoryUncategorized}
}

// IsValidCategory checks if the given category is supported.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryExperience, CategoryIdea, CategoryGratitude, CategoryReflection, CategoryUncategorized:
		return true
	default:
		return false
	}
}

// Origin distinguishes bot-authored messages from human ones.
type Origin string

const (
	// OriginHuman marks a message typed by the user.
	OriginHuman Origin = "human"
	// OriginBot marks a message authored by the bot.
	OriginBot Origin = "bot"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum allowed length for a journal message body
	MaxMessageBodyLength = 4096
	// MaxSpeakerLength defines the maximum allowed length for a speaker name
	MaxSpeakerLength = 100
)

// Error variables for better error handling and testability
var (
	ErrEmptySpeaker        = errors.New("speaker cannot be empty")
	ErrSpeakerTooLong      = errors.New("speaker exceeds maximum length")
	ErrMessageBodyTooLong  = errors.New("message body exceeds maximum length")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidOrigin       = errors.New("invalid origin")
	ErrEmptySessionID      = errors.New("session id cannot be empty")
	ErrInvalidReminderTime = errors.New("reminder time out of range")
)

// Message is one immutable journal record. It is append-only: once written
// it is never mutated or deleted.
type Message struct {
	ID        int64     `json:"id,omitempty"`
	Speaker   string    `json:"speaker"`
	Body      string    `json:"body"`
	Category  Category  `json:"category"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate performs validation on a Message before it is appended.
func (m *Message) Validate() error {
	if m.Speaker == "" {
		return ErrEmptySpeaker
	}
	if len(m.Speaker) > MaxSpeakerLength {
		return ErrSpeakerTooLong
	}
	if len(m.Body) > MaxMessageBodyLength {
		return ErrMessageBodyTooLong
	}
	if !IsValidCategory(m.Category) {
		return ErrInvalidCategory
	}
	if m.Origin != OriginHuman && m.Origin != OriginBot {
		return ErrInvalidOrigin
	}
	return nil
}

// TimeBucket records the external archive container for one calendar period
// (a Drive folder for a month, a Doc for a day). Buckets are created lazily
// on first write within the period and never deleted.
type TimeBucket struct {
	Name      string    `json:"name"`      // period key, e.g. "January-2026" or "January-5-2026"
	FolderID  string    `json:"folder_id"` // external folder identifier, empty for doc buckets
	DocID     string    `json:"doc_id"`    // external document identifier, empty for folder buckets
	CreatedAt time.Time `json:"created_at"`
}

// ReminderPref is a per-session daily check-in preference. It is restored and
// re-registered on process restart so a crash does not drop promised reminders.
type ReminderPref struct {
	SessionID string    `json:"session_id"`
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates a ReminderPref.
func (p *ReminderPref) Validate() error {
	if p.SessionID == "" {
		return ErrEmptySessionID
	}
	if p.Hour < 0 || p.Hour > 23 || p.Minute < 0 || p.Minute > 59 {
		return ErrInvalidReminderTime
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return errors.New("invalid timezone")
		}
	}
	return nil
}

// InboundMessage is one user event delivered by a chat transport.
type InboundMessage struct {
	SessionID string `json:"session_id"`
	Body      string `json:"body"`
	MediaURL  string `json:"media_url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Time      int64  `json:"time"`
}

// ActionType identifies the kind of outbound instruction the engine emits.
type ActionType string

const (
	// ActionSay sends a text reply to the user.
	ActionSay ActionType = "say"
	// ActionShowMedia sends a media URL to the user.
	ActionShowMedia ActionType = "show_media"
)

// Action is one structured reply instruction produced by the conversation engine.
type Action struct {
	Type ActionType `json:"type"`
	Body string     `json:"body,omitempty"`
	URL  string     `json:"url,omitempty"`
}

// Say builds a text reply action.
func Say(body string) Action {
	return Action{Type: ActionSay, Body: body}
}

// ShowMedia builds a media reply action.
func ShowMedia(url string) Action {
	return Action{Type: ActionShowMedia, URL: url}
}
