package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kaiassist/kai/internal/core"
)

// TaskStore handles task persistence in SQLite
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a new task store
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

// Append inserts a task
func (s *TaskStore) Append(ctx context.Context, task core.Task) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO tasks (id, name, delay, priority, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, task.ID, task.Name, task.Delay, task.Priority, task.Created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// All returns every task in insertion order
func (s *TaskStore) All(ctx context.Context) ([]core.Task, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, name, delay, priority, created_at
		FROM tasks ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		var task core.Task
		var created string
		if err := rows.Scan(&task.ID, &task.Name, &task.Delay, &task.Priority, &created); err != nil {
			return nil, err
		}
		task.Created, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("%w: task %s created_at: %v", core.ErrCorruptStore, task.ID, err)
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// Count returns the number of stored tasks
func (s *TaskStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)
	return count, err
}
