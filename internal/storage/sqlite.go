// Package storage provides persistence for Kai.
//
// Two backends keep tasks and the memory log: plain JSON files (the default,
// one file per collection rewritten on every change) and SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// Driver names accepted by Open
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	conn     *sql.DB
	path     string
	driver   string
	isMemory bool
}

// Config for database initialization
type Config struct {
	Path     string // Path to database file
	Driver   string // "sqlite" (default) or "sqlite3"
	InMemory bool   // Use in-memory database (for testing)
}

// Open opens or creates a SQLite database
func Open(cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	var dsn string
	if cfg.InMemory {
		dsn = ":memory:"
	} else {
		// Ensure directory exists
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = cfg.Path
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite doesn't handle concurrent writes well, and an
	// in-memory database only lives as long as its connection.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if !cfg.InMemory {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	return &DB{
		conn:     conn,
		path:     cfg.Path,
		driver:   driver,
		isMemory: cfg.InMemory,
	}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for direct access
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the sql driver name in use
func (db *DB) Driver() string {
	return db.driver
}

// Transaction executes a function within a transaction
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
