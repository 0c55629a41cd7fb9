// Package store keeps the local message log in a sqlite database.
package store

import (
	"context"
	"fmt"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
	"github.com/jmoiron/sqlx"

	"github.com/finsight/finsight/internal/api"
)

const schema = `CREATE TABLE IF NOT EXISTS messages(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT,
	sender TEXT,
	text TEXT,
	raw TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Entry is a message to append to the log
type Entry struct {
	Platform string `db:"platform"`
	Sender   string `db:"sender"`
	Text     string `db:"text"`
	Raw      string `db:"raw"`
}

// Store is the sqlite-backed message log
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the sqlite database at path and ensures the schema
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &Store{db: db}, nil
}

// Append inserts e and returns its row ID
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO messages(platform, sender, text, raw) VALUES(:platform, :sender, :text, :raw)`, e)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

// Recent returns up to limit messages, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]api.Message, error) {
	messages := make([]api.Message, 0)
	err := s.db.SelectContext(ctx, &messages,
		`SELECT id, platform, sender, text, created_at FROM messages ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	return messages, nil
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}
