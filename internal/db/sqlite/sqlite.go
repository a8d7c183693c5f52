package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite" // pure Go sqlite driver
	sqlite3 "modernc.org/sqlite/lib"
)

// Open opens or creates a SQLite database file and applies PRAGMAs.
// ":memory:" opens a private in-memory database limited to one connection.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
		return db, nil
	}

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", strings.TrimSuffix(p, ";"), err)
		}
	}
	return db, nil
}

// Ping verifies the database is reachable.
func Ping(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// QuoteIdent quotes an identifier for use in SQL text.
// Callers validate identifiers first; quoting only guards keywords and case.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IsSchemaError reports whether SQLite rejected a statement with SQLITE_ERROR, which is how a
// missing table or column surfaces. Busy databases, constraint failures and context
// cancellation are not schema errors.
func IsSchemaError(err error) bool {
	var se *msqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_ERROR
}
