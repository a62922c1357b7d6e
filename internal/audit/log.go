// Package audit persists boundary violations (unauthorized channels,
// rate-limit trips, refused outbound emits) to a local SQLite database so
// they survive restarts and can be reviewed after the fact.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Log records boundary events. It satisfies bridge.Recorder.
type Log struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Event is one recorded boundary violation.
type Event struct {
	ID      int64     `json:"id"`
	TS      time.Time `json:"ts"`
	Kind    string    `json:"kind"`
	Sender  string    `json:"sender"`
	Channel string    `json:"channel"`
	Detail  string    `json:"detail"`
}

// Open opens or creates the audit database in the given directory.
func Open(dataDir string) (*Log, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "audit.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure audit database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS boundary_events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      DATETIME DEFAULT CURRENT_TIMESTAMP,
			kind    TEXT NOT NULL,
			sender  TEXT DEFAULT '',
			channel TEXT DEFAULT '',
			detail  TEXT DEFAULT ''
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create boundary_events table: %w", err)
	}

	return &Log{db: db, path: dbPath}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Log) Path() string {
	return l.path
}

// Record stores one event. Failures are logged, not returned: auditing must
// never block or fail message dispatch.
func (l *Log) Record(kind, senderID, channel, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(`
		INSERT INTO boundary_events (kind, sender, channel, detail) VALUES (?, ?, ?, ?)
	`, kind, senderID, channel, detail)
	if err != nil {
		log.Printf("AUDIT: record failed: %v", err)
	}
}

// Recent returns the newest n events, newest first.
func (l *Log) Recent(n int) ([]Event, error) {
	if n <= 0 {
		n = 100
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := l.db.Query(`
		SELECT id, ts, kind, sender, channel, detail
		FROM boundary_events ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Kind, &e.Sender, &e.Channel, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the cutoff. Returns rows removed.
func (l *Log) Prune(olderThan time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(`DELETE FROM boundary_events WHERE ts < ?`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
