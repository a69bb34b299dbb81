// Package store persists the prayer-time fields displayed on the site.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS prayer_times (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store is a small key-value table in sqlite.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// All returns every stored field. An empty store yields an empty map, not nil.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM prayer_times`)
	if err != nil {
		return nil, fmt.Errorf("query prayer times: %w", err)
	}
	defer rows.Close()

	times := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan prayer time: %w", err)
		}
		times[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prayer times: %w", err)
	}
	return times, nil
}

// Set upserts one field.
func (s *Store) Set(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prayer_times (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value)
	if err != nil {
		return fmt.Errorf("set prayer time %q: %w", name, err)
	}
	return nil
}
