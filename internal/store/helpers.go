package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mosesmc52/journal-bot/internal/models"
)

// scanMessage scans a Message from sql.Rows.
func scanMessage(rows *sql.Rows) (models.Message, error) {
	var m models.Message
	if err := rows.Scan(&m.ID, &m.Speaker, &m.Body, &m.Category, &m.Origin, &m.CreatedAt); err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	return m, nil
}

// scanReminderPref scans a ReminderPref from sql.Rows.
func scanReminderPref(rows *sql.Rows) (models.ReminderPref, error) {
	var p models.ReminderPref
	if err := rows.Scan(&p.SessionID, &p.Hour, &p.Minute, &p.Timezone, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, fmt.Errorf("scan reminder pref failed: %w", err)
	}
	return p, nil
}

// marshalStateData encodes flow state data as JSON, empty string for nil/empty maps.
func marshalStateData(data map[models.DataKey]string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// unmarshalStateData decodes flow state data, returning an empty map on
// malformed input rather than failing the read.
func unmarshalStateData(raw string) map[models.DataKey]string {
	data := make(map[models.DataKey]string)
	if raw == "" {
		return data
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return make(map[models.DataKey]string)
	}
	return data
}
