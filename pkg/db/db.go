// Package db keeps strategy records and their execution journal in SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Database wraps the SQL handle.
type Database struct {
	DB   *sql.DB
	Path string
}

// Open creates the parent directory of path when needed, opens the file with
// a busy timeout and pings it.
func Open(ctx context.Context, path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		dsn += "?_pragma=busy_timeout(5000)"
	}

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection: writes are serialized and :memory: stays a single database
	handle.SetMaxOpenConns(1)
	handle.SetConnMaxIdleTime(30 * time.Minute)

	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &Database{DB: handle, Path: path}, nil
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
