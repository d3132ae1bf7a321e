// Package journal records dispatch outcomes to a local SQLite database.
//
// The journal is an audit trail only. Dedup state is never rebuilt from it,
// so a restart still re-delivers messages still visible in the inbox.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies one dispatch.
type Outcome string

const (
	OutcomeWelcome        Outcome = "welcome"
	OutcomeReplied        Outcome = "replied"
	OutcomeAPIError       Outcome = "api_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeSendFailed     Outcome = "send_failed"
)

// Entry is one journal row.
type Entry struct {
	ID        int64
	MessageID string
	ThreadID  string
	SenderID  string
	Command   string // "info", "vists" or "" for welcomes
	UID       string
	Outcome   Outcome
	Detail    string
	CreatedAt time.Time
}

// Journal is a SQLite-backed dispatch log.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS dispatches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		command TEXT NOT NULL DEFAULT '',
		uid TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dispatches_created ON dispatches(created_at);
	`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Record appends an entry. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO dispatches (message_id, thread_id, sender_id, command, uid, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.MessageID, e.ThreadID, e.SenderID, e.Command, e.UID, string(e.Outcome), e.Detail, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert dispatch: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, message_id, thread_id, sender_id, command, uid, outcome, detail, created_at
		FROM dispatches ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.MessageID, &e.ThreadID, &e.SenderID, &e.Command, &e.UID, &outcome, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dispatch row: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of entries per outcome.
func (j *Journal) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM dispatches GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count dispatches: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
