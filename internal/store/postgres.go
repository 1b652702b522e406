// Package store provides storage backends for the journal bot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/mosesmc52/journal-bot/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AddMessage appends one immutable message record.
func (s *PostgresStore) AddMessage(m models.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO messages (speaker, body, category, origin, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.Speaker, m.Body, m.Category, m.Origin, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "speaker", m.Speaker, "category", m.Category)
		return fmt.Errorf("failed to insert message from %s: %w", m.Speaker, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "speaker", m.Speaker, "category", m.Category, "origin", m.Origin)
	return nil
}

// LatestMessage returns the most recent message by timestamp, or nil if empty.
func (s *PostgresStore) LatestMessage() (*models.Message, error) {
	row := s.db.QueryRow(`SELECT id, speaker, body, category, origin, created_at FROM messages ORDER BY created_at DESC, id DESC LIMIT 1`)
	var m models.Message
	err := row.Scan(&m.ID, &m.Speaker, &m.Body, &m.Category, &m.Origin, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore LatestMessage failed", "error", err)
		return nil, fmt.Errorf("failed to query latest message: %w", err)
	}
	return &m, nil
}

// RecentMessages returns up to limit messages, newest first.
func (s *PostgresStore) RecentMessages(limit int) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT id, speaker, body, category, origin, created_at FROM messages ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		slog.Error("PostgresStore RecentMessages query failed", "error", err)
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore RecentMessages scan failed", "error", err)
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
func (s *PostgresStore) CountMessages(category models.Category, origin models.Origin) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE 1=1`
	args := []interface{}{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if origin != "" {
		args = append(args, origin)
		query += fmt.Sprintf(` AND origin = $%d`, len(args))
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		slog.Error("PostgresStore CountMessages failed", "error", err, "category", category, "origin", origin)
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// HasActivitySince reports whether any message was created at or after since.
func (s *PostgresStore) HasActivitySince(since time.Time, category models.Category, origin models.Origin) (bool, error) {
	query := `SELECT COUNT(*) FROM messages WHERE created_at >= $1`
	args := []interface{}{since}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if origin != "" {
		args = append(args, origin)
		query += fmt.Sprintf(` AND origin = $%d`, len(args))
	}
	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		slog.Error("PostgresStore HasActivitySince failed", "error", err, "category", category, "origin", origin)
		return false, fmt.Errorf("failed to query activity: %w", err)
	}
	return count > 0, nil
}

// GetBucket looks up a time bucket by period key. Returns nil if absent.
func (s *PostgresStore) GetBucket(name string) (*models.TimeBucket, error) {
	row := s.db.QueryRow(`SELECT name, folder_id, doc_id, created_at FROM buckets WHERE name = $1`, name)
	var b models.TimeBucket
	err := row.Scan(&b.Name, &b.FolderID, &b.DocID, &b.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetBucket not found", "name", name)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetBucket failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query bucket %s: %w", name, err)
	}
	return &b, nil
}

// SaveBucket stores or replaces a time bucket.
func (s *PostgresStore) SaveBucket(b models.TimeBucket) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO buckets (name, folder_id, doc_id, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET folder_id = EXCLUDED.folder_id, doc_id = EXCLUDED.doc_id`,
		b.Name, b.FolderID, b.DocID, b.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveBucket failed", "error", err, "name", b.Name)
		return fmt.Errorf("failed to save bucket %s: %w", b.Name, err)
	}
	return nil
}

// SaveFlowState stores or updates conversation state for a session.
func (s *PostgresStore) SaveFlowState(state models.FlowState) error {
	stateDataJSON, err := marshalStateData(state.StateData)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState JSON marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO flow_states (session_id, flow_type, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, flow_type) DO UPDATE SET current_state = EXCLUDED.current_state, state_data = EXCLUDED.state_data, updated_at = EXCLUDED.updated_at`,
		state.SessionID, state.FlowType, state.CurrentState, stateDataJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState failed", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
		return err
	}
	slog.Debug("PostgresStore SaveFlowState succeeded", "sessionID", state.SessionID, "state", state.CurrentState)
	return nil
}

// GetFlowState retrieves conversation state for a session. Returns nil if absent.
func (s *PostgresStore) GetFlowState(sessionID string, flowType models.FlowType) (*models.FlowState, error) {
	var state models.FlowState
	var stateDataJSON string
	err := s.db.QueryRow(`SELECT session_id, flow_type, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType).Scan(
		&state.SessionID, &state.FlowType, &state.CurrentState, &stateDataJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return nil, err
	}
	state.StateData = unmarshalStateData(stateDataJSON)
	return &state, nil
}

// DeleteFlowState removes conversation state for a session.
func (s *PostgresStore) DeleteFlowState(sessionID string, flowType models.FlowType) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE session_id = $1 AND flow_type = $2`, sessionID, flowType)
	if err != nil {
		slog.Error("PostgresStore DeleteFlowState failed", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	return nil
}

// SaveReminderPref stores or replaces the reminder preference for a session.
func (s *PostgresStore) SaveReminderPref(p models.ReminderPref) error {
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
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE SET hour = EXCLUDED.hour, minute = EXCLUDED.minute, timezone = EXCLUDED.timezone, updated_at = EXCLUDED.updated_at`,
		p.SessionID, p.Hour, p.Minute, p.Timezone, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveReminderPref failed", "error", err, "sessionID", p.SessionID)
		return fmt.Errorf("failed to save reminder pref for %s: %w", p.SessionID, err)
	}
	slog.Debug("PostgresStore SaveReminderPref succeeded", "sessionID", p.SessionID, "hour", p.Hour, "minute", p.Minute)
	return nil
}

// GetReminderPref retrieves the reminder preference for a session. Returns nil if absent.
func (s *PostgresStore) GetReminderPref(sessionID string) (*models.ReminderPref, error) {
	row := s.db.QueryRow(`SELECT session_id, hour, minute, timezone, created_at, updated_at FROM reminder_prefs WHERE session_id = $1`, sessionID)
	var p models.ReminderPref
	err := row.Scan(&p.SessionID, &p.Hour, &p.Minute, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetReminderPref failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query reminder pref for %s: %w", sessionID, err)
	}
	return &p, nil
}

// ListReminderPrefs returns all stored reminder preferences.
func (s *PostgresStore) ListReminderPrefs() ([]models.ReminderPref, error) {
	rows, err := s.db.Query(`SELECT session_id, hour, minute, timezone, created_at, updated_at FROM reminder_prefs ORDER BY session_id`)
	if err != nil {
		slog.Error("PostgresStore ListReminderPrefs query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminder prefs: %w", err)
	}
	defer rows.Close()

	var prefs []models.ReminderPref
	for rows.Next() {
		p, err := scanReminderPref(rows)
		if err != nil {
			slog.Error("PostgresStore ListReminderPrefs scan failed", "error", err)
			return nil, err
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder pref rows: %w", err)
	}
	return prefs, nil
}

// DeleteReminderPref removes the reminder preference for a session.
func (s *PostgresStore) DeleteReminderPref(sessionID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM reminder_prefs WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteReminderPref failed", "error", err, "sessionID", sessionID)
		return false, fmt.Errorf("failed to delete reminder pref for %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return affected > 0, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
