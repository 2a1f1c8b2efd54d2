// Package kvstore is a small persistent string key/value store, the local
// storage the client keeps its credentials and virtual folders in.
package kvstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudstore/cloudstore/internal/db"
	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL -- unix ms
);
`

var ErrClosed = errors.New("kvstore: closed")

// Store is the interface consumers depend on, so tests can swap in a map.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

type SqliteStore struct {
	db   *sqlx.DB
	path string
}

var _ Store = (*SqliteStore)(nil)

// Open opens or creates the store at path. ":memory:" keeps it in memory.
func Open(path string) (*SqliteStore, error) {
	conn, err := db.NewSqliteDB(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("kvstore open: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore schema: %w", err)
	}

	return &SqliteStore{db: conn, path: path}, nil
}

func (s *SqliteStore) Path() string {
	return s.path
}

func (s *SqliteStore) Get(key string) (string, bool, error) {
	if s.db == nil {
		return "", false, ErrClosed
	}

	var value string
	err := s.db.Get(&value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore get %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces key in a single statement.
func (s *SqliteStore) Set(key, value string) error {
	if s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("kvstore set %q: %w", key, err)
	}
	return nil
}

func (s *SqliteStore) Delete(key string) error {
	if s.db == nil {
		return ErrClosed
	}

	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("kvstore delete %q: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix, sorted.
func (s *SqliteStore) Keys(prefix string) ([]string, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	var keys []string
	if err := s.db.Select(&keys, `SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, escaped+"%"); err != nil {
		return nil, fmt.Errorf("kvstore keys %q: %w", prefix, err)
	}
	return keys, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		slog.Error("kvstore close", "path", s.path, "error", err)
	}
	return err
}
