// Package store provides storage backends for the journal bot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/mosesmc52/journal-bot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddMessage appends one immutable message record.
func (s *SQLiteStore) AddMessage(m models.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO messages (speaker, body, category, origin, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.Speaker, m.Body, m.Category, m.Origin, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "speaker", m.Speaker, "category", m.Category)
		return fmt.Errorf("failed to insert message from %s: %w", m.Speaker, err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "speaker", m.Speaker, "category", m.Category, "origin", m.Origin)
	return nil
}

// LatestMessage returns the most recent message by timestamp, or nil if empty.
func (s *SQLiteStore) LatestMessage() (*models.Message, error) {
	row := s.db.QueryRow(`SELECT id, speaker, body, category, origin, created_at FROM messages ORDER BY created_at DESC, id DESC LIMIT 1`)
	var m models.Message
	err := row.Scan(&m.ID, &m.Speaker, &m.Body, &m.Category, &m.Origin, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore LatestMessage failed", "error", err)
		return nil, fmt.Errorf("failed to query latest message: %w", err)
	}
	return &m, nil
}

// RecentMessages returns up to limit messages, newest first.
func (s *SQLiteStore) RecentMessages(limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, speaker, body, category, origin, created_at FROM messages ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		slog.Error("SQLiteStore RecentMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore RecentMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// CountMessages counts messages matching the category and origin.
func (s *SQLiteStore) CountMessages(category models.Category, origin models.Origin) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE 1=1`
	args := []interface{}{}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if origin != "" {
		query += ` AND origin = ?`
		args = append(args, origin)
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		slog.Error("SQLiteStore CountMessages failed", "error", err, "category", category, "origin", origin)
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	slog.Debug("SQLiteStore CountMessages succeeded", "category", category, "origin", origin, "count", count)
	return count, nil
}

// HasActivitySince reports whether any message was created at or after since.
func (s *SQLiteStore) HasActivitySince(since time.Time, category models.Category, origin models.Origin) (bool, error) {
	query := `SELECT COUNT(*) FROM messages WHERE created_at >= ?`
	args := []interface{}{since}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if origin != "" {
		query += ` AND origin = ?`
		args = append(args, origin)
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		slog.Error("SQLiteStore HasActivitySince failed", "error", err, "category", category, "origin", origin)
		return false, fmt.Errorf("failed to query activity: %w", err)
	}
	return count > 0, nil
}

// GetBucket looks up a time bucket by period key. Returns nil if absent.
func (s *SQLiteStore) GetBucket(name string) (*models.TimeBucket, error) {
	row := s.db.QueryRow(`SELECT name, folder_id, doc_id, created_at FROM buckets WHERE name = ?`, name)
	var b models.TimeBucket
	err := row.Scan(&b.Name, &b.FolderID, &b.DocID, &b.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetBucket not found", "name", name)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetBucket failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query bucket %s: %w", name, err)
	}
	return &b, nil
}

// SaveBucket stores or replaces a time bucket.
func (s *SQLiteStore) SaveBucket(b models.TimeBucket) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO buckets (name, folder_id, doc_id, created_at) VALUES (?, ?, ?, ?)`,
		b.Name, b.FolderID, b.DocID, b.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveBucket failed", "error", err, "name", b.Name)
		return fmt.Errorf("failed to save bucket %s: %w", b.Name, err)
	}
	slog.Debug("SQLiteStore SaveBucket succeeded", "name", b.Name)
	return nil
}

// SaveFlowState stores or updates conversation state for a session.
func (s *SQLiteStore) SaveFlowState(state models.FlowState) error {
	stateDataJSON, err := marshalStateData(state.StateData)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState JSON marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		state.SessionID, state.FlowType, state.CurrentState, stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("SQLiteStore SaveFlowState succeeded", "sessionID", state.SessionID, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves conversation state for a session. Returns nil if absent.
func (s *SQLiteStore) GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON string
	err := s.db.QueryRow(`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType).Scan(
		&state.SessionID, &state.FlowType, &state.CurrentState, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFlowState not found", "sessionID", sessionID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}
	state.StateData = unmarshalStateData(stateDataJSON)
	return &state, nil
}

// DeleteFlowState removes conversation state for a session.
func (s *SQLiteStore) DeleteFlowState(sessionID string, flowType models.FlowType) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = ? AND flow_type = ?`, sessionID, flowType)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("SQLiteStore DeleteFlowState succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// SaveReminderPref stores or replaces the reminder preference for a session.
func (s *SQLiteStore) SaveReminderPref(p models.ReminderPref) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO reminder_prefs (session_id, hour, minute, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET hour=excluded.hour, minute=excluded.minute, timezone=excluded.timezone, updated_at=excluded.updated_at`,
		p.SessionID, p.Hour, p.Minute, p.Timezone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveReminderPref failed", "error", err, "sessionID", p.SessionID)
		return fmt.Errorf("failed to save reminder pref for %s: %w", p.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveReminderPref succeeded", "sessionID", p.SessionID, "hour", p.Hour, "minute", p.Minute)
	return nil
}

// GetReminderPref retrieves the reminder preference for a session. Returns nil if absent.
func (s *SQLiteStore) GetReminderPref(sessionID string) (*models.ReminderPref, error) {
	row := s.db.QueryRow(`SELECT session_id, hour, minute, timezone, created_at, updated_at FROM reminder_prefs WHERE session_id = ?`, sessionID)
	var p models.ReminderPref
	err := row.Scan(&p.SessionID, &p.Hour, &p.Minute, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetReminderPref failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query reminder pref for %s: %w", sessionID, err)
	}
	return &p, nil
}

// ListReminderPrefs returns all stored reminder preferences.
func (s *SQLiteStore) ListReminderPrefs() ([]models.ReminderPref, error) {
	rows, err := s.db.Query(`SELECT session_id, hour, minute, timezone, created_at, updated_at FROM reminder_prefs ORDER BY session_id`)
	if err != nil {
		slog.Error("SQLiteStore ListReminderPrefs query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminder prefs: %w", err)
	}
	defer rows.Close()

	var prefs []models.ReminderPref
	for rows.Next() {
		p, err := scanReminderPref(rows)
		if err != nil {
			slog.Error("SQLiteStore ListReminderPrefs scan failed", "error", err)
			return nil, err
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListReminderPrefs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate reminder pref rows: %w", err)
	}
	slog.Debug("SQLiteStore ListReminderPrefs succeeded", "count", len(prefs))
	return prefs, nil
}

// DeleteReminderPref removes the reminder preference for a session.
func (s *SQLiteStore) DeleteReminderPref(sessionID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM reminder_prefs WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteReminderPref failed", "error", err, "sessionID", sessionID)
		return false, fmt.Errorf("failed to delete reminder pref for %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
