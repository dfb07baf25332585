// Package history provides SQLite-backed storage of flag transitions.
//
// The flag files themselves only describe the problems currently standing;
// the history answers "what was raised or cleared, and when", which is what
// operators reach for when a flag flaps.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/setevik/communicatord/internal/flags"
)

// Action is the direction of a flag transition.
type Action string

const (
	ActionRaise Action = "raise"
	ActionClear Action = "clear"
)

// DB wraps an SQLite connection for transition storage.
type DB struct {
	db *sql.DB
}

// Open opens or creates an SQLite database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Transition is one recorded raise or clear of a flag.
type Transition struct {
	ID        int64
	Unit      string
	Section   string
	Name      string
	Action    Action
	Priority  int
	Message   string
	Hostname  string
	CreatedAt time.Time
}

// Record stores a transition for the given flag.
func (d *DB) Record(f *flags.Flag, action Action) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	_, err = d.db.Exec(`
		INSERT INTO transitions (unit, section, name, action, priority, message, hostname, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Unit(),
		f.Section(),
		f.Name(),
		string(action),
		f.Priority(),
		f.Message(),
		hostname,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// Filter controls which transitions are returned by Query.
type Filter struct {
	Since  time.Time
	Until  time.Time
	Unit   string
	Action Action
	Limit  int
}

// Query returns transitions matching the filter, newest first.
func (d *DB) Query(f Filter) ([]*Transition, error) {
	query := `SELECT id, unit, section, name, action, priority, message, hostname, created_at
		FROM transitions WHERE 1=1`
	var args []interface{}

	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if !f.Until.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, f.Until.UTC().Format(time.RFC3339Nano))
	}
	if f.Unit != "" {
		query += " AND unit = ?"
		args = append(args, f.Unit)
	}
	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, string(f.Action))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*Transition
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, tr)
	}
	return transitions, rows.Err()
}

// Purge deletes transitions older than the given retention duration.
func (d *DB) Purge(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	result, err := d.db.Exec(`DELETE FROM transitions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging old transitions: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of stored transitions.
func (d *DB) Count() (int64, error) {
	var count int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM transitions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting transitions: %w", err)
	}
	return count, nil
}

func scanTransition(rows *sql.Rows) (*Transition, error) {
	var tr Transition
	var action, tsStr string
	var message, hostname sql.NullString

	err := rows.Scan(
		&tr.ID,
		&tr.Unit,
		&tr.Section,
		&tr.Name,
		&action,
		&tr.Priority,
		&message,
		&hostname,
		&tsStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning transition row: %w", err)
	}

	tr.Action = Action(action)
	tr.Message = message.String
	tr.Hostname = hostname.String
	tr.CreatedAt, _ = time.Parse(time.RFC3339Nano, tsStr)

	return &tr, nil
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS transitions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			unit       TEXT NOT NULL,
			section    TEXT NOT NULL,
			name       TEXT NOT NULL,
			action     TEXT NOT NULL,
			priority   INTEGER NOT NULL,
			message    TEXT,
			hostname   TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_ts ON transitions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_triple ON transitions(unit, section, name, created_at)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("history schema up to date")
	return nil
}
