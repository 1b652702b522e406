// Package store provides storage backends for the journal bot.
//
// It includes an in-memory store for tests and single-session setups, and
// persistent SQLite and PostgreSQL backends. The store owns the append-only
// message log, the time-bucket table for the external archive, per-session
// conversation states, and reminder preferences.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
)

// Store defines the persistence operations used across modules.
type Store interface {
	// AddMessage appends one immutable message record.
	AddMessage(m models.Message) error
	// LatestMessage returns the most recent message, or nil if the log is empty.
	LatestMessage() (*models.Message, error)
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(limit int) ([]models.Message, error)
	// CountMessages counts messages matching the category and origin.
	// An empty origin counts both human and bot messages.
	CountMessages(category models.Category, origin models.Origin) (int, error)
	// HasActivitySince reports whether any message (optionally filtered by
	// category and origin) was created at or after the given time. Empty
	// filters match everything.
	HasActivitySince(since time.Time, category models.Category, origin models.Origin) (bool, error)

	// GetBucket looks up a time bucket by period key. Returns nil if absent.
	GetBucket(name string) (*models.TimeBucket, error)
	// SaveBucket stores or replaces a time bucket.
	SaveBucket(b models.TimeBucket) error

	// SaveFlowState stores or updates conversation state for a session.
	SaveFlowState(state models.FlowState) error
	// GetFlowState retrieves conversation state for a session. Returns nil if absent.
	GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error)
	// DeleteFlowState removes conversation state for a session.
	DeleteFlowState(sessionID string, flowType models.FlowType) error

	// SaveReminderPref stores or replaces the reminder preference for a session.
	SaveReminderPref(p models.ReminderPref) error
	// GetReminderPref retrieves the reminder preference for a session. Returns nil if absent.
	GetReminderPref(sessionID string) (*models.ReminderPref, error)
	// ListReminderPrefs returns all stored reminder preferences.
	ListReminderPrefs() ([]models.ReminderPref, error)
	// DeleteReminderPref removes the reminder preference for a session.
	// Returns whether a preference existed.
	DeleteReminderPref(sessionID string) (bool, error)

	// Close releases database resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store. Writes to the message log
// and the reminder table serialize on a single lock, as replace-cancel on
// reminders is a check-then-act sequence.
type InMemoryStore struct {
	mu       sync.Mutex
	messages []models.Message
	nextID   int64
	buckets  map[string]models.TimeBucket
	states   map[string]models.FlowState
	prefs    map[string]models.ReminderPref
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		buckets: make(map[string]models.TimeBucket),
		states:  make(map[string]models.FlowState),
		prefs:   make(map[string]models.ReminderPref),
	}
}

// AddMessage appends one immutable message record.
func (s *InMemoryStore) AddMessage(m models.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages = append(s.messages, m)
	return nil
}

// LatestMessage returns the most recent message by timestamp, or nil if empty.
func (s *InMemoryStore) LatestMessage() (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil, nil
	}
	latest := s.messages[0]
	for _, m := range s.messages[1:] {
		if !m.CreatedAt.Before(latest.CreatedAt) {
			latest = m
		}
	}
	return &latest, nil
}

// RecentMessages returns up to limit messages, newest first.
func (s *InMemoryStore) RecentMessages(limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]models.Message, len(s.messages))
	copy(sorted, s.messages)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// CountMessages counts messages matching the category and origin.
func (s *InMemoryStore) CountMessages(category models.Category, origin models.Origin) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if category != "" && m.Category != category {
			continue
		}
		if origin != "" && m.Origin != origin {
			continue
		}
		count++
	}
	return count, nil
}

// HasActivitySince reports whether any message was created at or after since.
func (s *InMemoryStore) HasActivitySince(since time.Time, category models.Category, origin models.Origin) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if category != "" && m.Category != category {
			continue
		}
		if origin != "" && m.Origin != origin {
			continue
		}
		if !m.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// GetBucket looks up a time bucket by period key.
func (s *InMemoryStore) GetBucket(name string) (*models.TimeBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// SaveBucket stores or replaces a time bucket.
func (s *InMemoryStore) SaveBucket(b models.TimeBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.buckets[b.Name] = b
	return nil
}

func stateKey(sessionID string, flowType models.FlowType) string {
	return sessionID + "|" + string(flowType)
}

// SaveFlowState stores or updates conversation state for a session.
func (s *InMemoryStore) SaveFlowState(state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(state.SessionID, state.FlowType)] = state
	return nil
}

// GetFlowState retrieves conversation state for a session.
func (s *InMemoryStore) GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[stateKey(sessionID, flowType)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// DeleteFlowState removes conversation state for a session.
func (s *InMemoryStore) DeleteFlowState(sessionID string, flowType models.FlowType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, stateKey(sessionID, flowType))
	return nil
}

// SaveReminderPref stores or replaces the reminder preference for a session.
func (s *InMemoryStore) SaveReminderPref(p models.ReminderPref) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.prefs[p.SessionID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.prefs[p.SessionID] = p
	return nil
}

// GetReminderPref retrieves the reminder preference for a session.
func (s *InMemoryStore) GetReminderPref(sessionID string) (*models.ReminderPref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[sessionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListReminderPrefs returns all stored reminder preferences sorted by session id.
func (s *InMemoryStore) ListReminderPrefs() ([]models.ReminderPref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs := make([]models.ReminderPref, 0, len(s.prefs))
	for _, p := range s.prefs {
		prefs = append(prefs, p)
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].SessionID < prefs[j].SessionID })
	return prefs, nil
}

// DeleteReminderPref removes the reminder preference for a session.
func (s *InMemoryStore) DeleteReminderPref(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.prefs[sessionID]
	delete(s.prefs, sessionID)
	return ok, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
