package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kailas-cloud/clinicrag/internal/domain/transcript"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_history (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        query TEXT NOT NULL,
        response TEXT NOT NULL,
        created_at TEXT NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_query ON chat_history(query);`,
}

// Repo persists chat transcripts in SQLite.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

// New creates the repository and ensures its table exists.
func New(ctx context.Context, db *sql.DB) (*Repo, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("ensure chat_history schema: %w", err)
		}
	}
	return &Repo{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Save stores one transcript and returns it with its id and timestamp.
func (r *Repo) Save(ctx context.Context, query, response string) (transcript.Transcript, error) {
	created := r.now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_history (query, response, created_at) VALUES (?, ?, ?)`,
		query, response, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("insert chat_history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return transcript.Transcript{}, fmt.Errorf("last insert id: %w", err)
	}
	return transcript.Transcript{ID: id, Query: query, Response: response, CreatedAt: created}, nil
}

// Recent returns up to limit transcripts, newest first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]transcript.Transcript, error) {
	if limit <= 0 {
		return []transcript.Transcript{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, query, response, created_at FROM chat_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat_history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]transcript.Transcript, 0, limit)
	for rows.Next() {
		var (
			e       transcript.Transcript
			created string
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.Response, &created); err != nil {
			return nil, fmt.Errorf("scan chat_history: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat_history: %w", err)
	}
	return entries, nil
}
