package storage

import (
	"context"
	"fmt"

	"github.com/kaiassist/kai/internal/core"
)

// MemoryStore handles memory log persistence in SQLite
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a new memory store
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// Append inserts one log entry
func (s *MemoryStore) Append(ctx context.Context, entry core.MemoryEntry) error {
	_, err := s.db.conn.ExecContext(ctx,
		"INSERT INTO memory_log (id, timestamp, entry) VALUES (?, ?, ?)",
		entry.ID, entry.Timestamp, entry.Entry,
	)
	if err != nil {
		return fmt.Errorf("insert memory entry: %w", err)
	}
	return nil
}

// All returns every entry in insertion order
func (s *MemoryStore) All(ctx context.Context) ([]core.MemoryEntry, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		"SELECT id, timestamp, entry FROM memory_log ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("query memory log: %w", err)
	}
	defer rows.Close()

	var entries []core.MemoryEntry
	for rows.Next() {
		var e core.MemoryEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Entry); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
