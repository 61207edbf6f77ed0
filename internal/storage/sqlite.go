package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trace_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts        INTEGER NOT NULL,
	trace_id  TEXT NOT NULL,
	user_id   TEXT NOT NULL DEFAULT '',
	step      TEXT NOT NULL,
	metadata  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trace_events_trace ON trace_events(trace_id);
`

// SQLiteRecorder stores events in a single sqlite table.
type SQLiteRecorder struct {
	db *sql.DB
}

func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) AppendEvent(event Event) error {
	meta := ""
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}
	_, err := r.db.Exec(
		`INSERT INTO trace_events (ts, trace_id, user_id, step, metadata) VALUES (?, ?, ?, ?, ?)`,
		event.Timestamp.UnixNano(), event.TraceID, event.UserID, event.Step, meta,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) LoadEvents() ([]Event, error) {
	rows, err := r.db.Query(`SELECT ts, trace_id, user_id, step, metadata FROM trace_events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ts   int64
			meta string
			ev   Event
		)
		if err := rows.Scan(&ts, &ev.TraceID, &ev.UserID, &ev.Step, &meta); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *SQLiteRecorder) Close() error { return r.db.Close() }
