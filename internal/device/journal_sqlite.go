package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteJournal implements Journal on the state_transitions table.
//
// Parameter snapshots are stored as JSON.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal creates a journal on an open, migrated database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteJournal: Journal ready for use
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db}
}

// RecordTransition inserts one transition row.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - t: Transition to store; Source defaults to telemetry
//
// Returns:
//   - error: ErrInvalidTransition without a serial, otherwise the database error
func (j *SQLiteJournal) RecordTransition(ctx context.Context, t Transition) error {
	if t.Serial == "" {
		return fmt.Errorf("%w: serial is required", ErrInvalidTransition)
	}
	if t.Source == "" {
		t.Source = SourceTelemetry
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{}
	}

	paramsJSON, err := json.Marshal(t.Parameters)
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}

	powered := 0
	if t.Powered {
		powered = 1
	}

	_, err = j.db.ExecContext(ctx,
		"INSERT INTO state_transitions (serial, estado, powered, parameters, source) VALUES (?, ?, ?, ?, ?)",
		t.Serial,
		t.Estado,
		powered,
		string(paramsJSON),
		t.Source,
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}

	return nil
}

// History returns recent transitions for a device, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - serial: Device serial
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Transition: Transitions ordered by created_at DESC, then id DESC
//   - error: nil on success, otherwise the underlying query error
func (j *SQLiteJournal) History(ctx context.Context, serial string, limit int) ([]Transition, error) {
	if serial == "" {
		return nil, fmt.Errorf("%w: serial is required", ErrInvalidTransition)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, serial, estado, powered, parameters, source, created_at
		 FROM state_transitions
		 WHERE serial = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		serial,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Transition, 0, limit)
	for rows.Next() {
		var t Transition
		var powered int
		var paramsJSON string
		var createdAt string

		if err := rows.Scan(&t.ID, &t.Serial, &t.Estado, &powered, &paramsJSON, &t.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.Powered = powered != 0

		if err := json.Unmarshal([]byte(paramsJSON), &t.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshalling parameters: %w", err)
		}

		t.CreatedAt, err = parseJournalTimestamp(createdAt)
		if err != nil {
			return nil, err
		}

		entries = append(entries, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return entries, nil
}

// parseJournalTimestamp parses a created_at value stored in SQLite.
func parseJournalTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	ts, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return ts, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
