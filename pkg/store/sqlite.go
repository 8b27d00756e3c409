package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteTranscriptStore persists transcripts to a SQLite database.
type SQLiteTranscriptStore struct {
	db *sql.DB
}

// NewSQLiteTranscriptStore opens (or creates) the transcript database.
func NewSQLiteTranscriptStore(dbPath string) (*SQLiteTranscriptStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL keeps appends from the live conversation from blocking readers.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteTranscriptStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTranscriptStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS transcript_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcript_session ON transcript_entries(session_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Append stores one transcript entry. Entries are append-only.
func (s *SQLiteTranscriptStore) Append(ctx context.Context, sessionID string, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript_entries (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, entry.Role, entry.Content, entry.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

// List returns the session's transcript in insertion order.
func (s *SQLiteTranscriptStore) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM transcript_entries WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("list transcript entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt int64
		if err := rows.Scan(&entry.Role, &entry.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		entry.Timestamp = time.UnixMilli(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript entries: %w", err)
	}
	return entries, nil
}

func (s *SQLiteTranscriptStore) Close() error {
	return s.db.Close()
}
