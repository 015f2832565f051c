// Package history persists the routing audit trail: one row per
// per-person outcome and per-device delivery attempt.
package history

import (
	"database/sql"
	"fmt"
	"time"
)

const timeFormat = "2006-01-02 15:04:05"

// Outcome statuses recorded per row.
const (
	StatusDelivered = "delivered" // gateway reported success
	StatusFailed    = "failed"    // gateway reported failure
	StatusLogged    = "logged"    // preference suppressed devices (none/log_only)
	StatusSkipped   = "skipped"   // unknown severity for this person
)

// Record is a row from routing_history.
type Record struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"request_id"`
	Person       string    `json:"person"`
	Severity     string    `json:"severity"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Preference   string    `json:"preference"`
	Device       string    `json:"device,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Migrate creates the routing history table.
func Migrate(db *sql.DB) error {
	statements := []struct {
		label string
		sql   string
	}{
		{"routing_history", `
			CREATE TABLE IF NOT EXISTS routing_history (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				request_id    TEXT    NOT NULL,
				person        TEXT    NOT NULL,
				severity      TEXT    NOT NULL,
				title         TEXT    NOT NULL,
				message       TEXT    NOT NULL,
				preference    TEXT    NOT NULL,
				device        TEXT    NOT NULL DEFAULT '',
				status        TEXT    NOT NULL,
				error_message TEXT    NOT NULL DEFAULT '',
				created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
			);`},
		{"routing_history request index", `
			CREATE INDEX IF NOT EXISTS idx_routing_history_request ON routing_history(request_id);`},
		{"routing_history person index", `
			CREATE INDEX IF NOT EXISTS idx_routing_history_person ON routing_history(person);`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("history migration failed at [%s]: %w", s.label, err)
		}
	}
	return nil
}

// Insert records one audit row.
func Insert(db *sql.DB, rec *Record) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO routing_history
			(request_id, person, severity, title, message, preference, device, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Person, rec.Severity, rec.Title, rec.Message,
		rec.Preference, rec.Device, rec.Status, rec.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("insert routing history: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the latest N audit rows, newest first.
func Recent(db *sql.DB, limit int) ([]Record, error) {
	rows, err := db.Query(`
		SELECT id, request_id, person, severity, title, message,
		       preference, device, status, error_message, created_at
		FROM routing_history
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent routing history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByRequest returns all audit rows for one routing request, oldest
// first, so a request's outcomes read in processing order.
func ByRequest(db *sql.DB, requestID string) ([]Record, error) {
	rows, err := db.Query(`
		SELECT id, request_id, person, severity, title, message,
		       preference, device, status, error_message, created_at
		FROM routing_history
		WHERE request_id = ? ORDER BY id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("routing history by request: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		var createdAt string
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Person, &r.Severity,
			&r.Title, &r.Message, &r.Preference, &r.Device,
			&r.Status, &r.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan routing history: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}
