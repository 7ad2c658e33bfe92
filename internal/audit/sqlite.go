package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink stores events in a single audit_log table
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create audit db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// One writer; batch runs record concurrently
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id TEXT NOT NULL,
		action TEXT NOT NULL,
		metadata TEXT,
		timestamp DATETIME NOT NULL
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_contract ON audit_log(contract_id)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create audit index: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Record inserts the event
func (s *SQLiteSink) Record(ctx context.Context, event Event) error {
	event = stamp(event)

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO audit_log (contract_id, action, metadata, timestamp) VALUES (?, ?, ?, ?)",
		event.ContractID, event.Action, string(metadata), event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// History returns the contract's events in insertion order
func (s *SQLiteSink) History(ctx context.Context, contractID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT contract_id, action, metadata, timestamp FROM audit_log WHERE contract_id = ? ORDER BY timestamp, id",
		contractID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	history := []Event{}
	for rows.Next() {
		var e Event
		var metadata sql.NullString
		if err := rows.Scan(&e.ContractID, &e.Action, &metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.Metadata = map[string]any{}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		history = append(history, e)
	}

	return history, rows.Err()
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
