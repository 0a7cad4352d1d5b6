// Package storage provides an advisory, rebuildable SQLite index over the
// JSON session files SessionStore persists. It is never authoritative:
// session.json remains the source of truth, and the index is safe to
// delete and regenerate at any time.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	last_modified_at TEXT NOT NULL,
	message_count    INTEGER NOT NULL DEFAULT 0,
	input_tokens     INTEGER NOT NULL DEFAULT 0,
	output_tokens    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_last_modified ON sessions(last_modified_at DESC);
`

// Index is a rollup cache rebuilt from session.json files, used to answer
// "list recent sessions" and usage-summary queries without re-parsing every
// JSON file on disk.
type Index struct {
	conn *sql.DB
}

// Open creates or opens the index database at path, applying schema.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying index schema: %w", err)
	}
	return &Index{conn: conn}, nil
}

func (idx *Index) Close() error {
	return idx.conn.Close()
}

// SessionRollup is one row of the advisory index.
type SessionRollup struct {
	ID             string
	Name           string
	CreatedAt      time.Time
	LastModifiedAt time.Time
	MessageCount   int
	InputTokens    int64
	OutputTokens   int64
}

// Upsert records or refreshes a session's rollup row.
func (idx *Index) Upsert(r SessionRollup) error {
	_, err := idx.conn.Exec(`
		INSERT INTO sessions (id, name, created_at, last_modified_at, message_count, input_tokens, output_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			last_modified_at=excluded.last_modified_at,
			message_count=excluded.message_count,
			input_tokens=excluded.input_tokens,
			output_tokens=excluded.output_tokens
	`, r.ID, r.Name, r.CreatedAt.Format(time.RFC3339Nano), r.LastModifiedAt.Format(time.RFC3339Nano),
		r.MessageCount, r.InputTokens, r.OutputTokens)
	if err != nil {
		return fmt.Errorf("upserting session rollup: %w", err)
	}
	return nil
}

// Recent returns the most recently modified sessions, capped at limit.
func (idx *Index) Recent(limit int) ([]SessionRollup, error) {
	rows, err := idx.conn.Query(`
		SELECT id, name, created_at, last_modified_at, message_count, input_tokens, output_tokens
		FROM sessions ORDER BY last_modified_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRollup
	for rows.Next() {
		var r SessionRollup
		var created, modified string
		if err := rows.Scan(&r.ID, &r.Name, &created, &modified, &r.MessageCount, &r.InputTokens, &r.OutputTokens); err != nil {
			return nil, fmt.Errorf("scanning session rollup: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		r.LastModifiedAt, _ = time.Parse(time.RFC3339Nano, modified)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TotalUsage sums input/output tokens across every indexed session, for a
// workspace-wide usage summary.
func (idx *Index) TotalUsage() (inputTokens, outputTokens int64, err error) {
	row := idx.conn.QueryRow(`SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0) FROM sessions`)
	if err := row.Scan(&inputTokens, &outputTokens); err != nil {
		return 0, 0, fmt.Errorf("summing usage: %w", err)
	}
	return inputTokens, outputTokens, nil
}

// Rebuild truncates the index and repopulates it from the given rollups,
// used when the index is missing, stale, or explicitly reset — it is never
// the only copy of this data, session.json files remain authoritative.
func (idx *Index) Rebuild(rollups []SessionRollup) error {
	tx, err := idx.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing index: %w", err)
	}
	for _, r := range rollups {
		if _, err := tx.Exec(`
			INSERT INTO sessions (id, name, created_at, last_modified_at, message_count, input_tokens, output_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.Name, r.CreatedAt.Format(time.RFC3339Nano), r.LastModifiedAt.Format(time.RFC3339Nano),
			r.MessageCount, r.InputTokens, r.OutputTokens); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting rollup for %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild: %w", err)
	}
	slog.Debug("rebuilt session index", "count", len(rollups))
	return nil
}
