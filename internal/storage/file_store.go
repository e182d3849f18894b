package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaiassist/kai/internal/core"
)

// jsonFile reads and rewrites one JSON array on disk.
// A missing or empty file reads as an empty collection.
type jsonFile[T any] struct {
	path string
}

func (f jsonFile[T]) load() ([]T, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrCorruptStore, f.path, err)
	}
	return items, nil
}

// save writes to a temp file in the same directory and renames it into place
func (f jsonFile[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

// append reads the whole file, adds one item and rewrites it
func (f jsonFile[T]) append(item T) error {
	items, err := f.load()
	if err != nil {
		return err
	}
	return f.save(append(items, item))
}

// FileTaskStore keeps tasks in a JSON file
type FileTaskStore struct {
	file jsonFile[core.Task]
}

// NewFileTaskStore creates a task store backed by path
func NewFileTaskStore(path string) *FileTaskStore {
	return &FileTaskStore{file: jsonFile[core.Task]{path: path}}
}

// Path returns the backing file
func (s *FileTaskStore) Path() string { return s.file.path }

// Append persists one more task, rewriting the file
func (s *FileTaskStore) Append(_ context.Context, task core.Task) error {
	return s.file.append(task)
}

// All returns every task in insertion order
func (s *FileTaskStore) All(_ context.Context) ([]core.Task, error) {
	return s.file.load()
}

// FileMemoryStore keeps the memory log in a JSON file
type FileMemoryStore struct {
	file jsonFile[core.MemoryEntry]
}

// NewFileMemoryStore creates a memory store backed by path
func NewFileMemoryStore(path string) *FileMemoryStore {
	return &FileMemoryStore{file: jsonFile[core.MemoryEntry]{path: path}}
}

// Path returns the backing file
func (s *FileMemoryStore) Path() string { return s.file.path }

// Append persists one more entry, rewriting the file
func (s *FileMemoryStore) Append(_ context.Context, entry core.MemoryEntry) error {
	return s.file.append(entry)
}

// All returns every entry in insertion order
func (s *FileMemoryStore) All(_ context.Context) ([]core.MemoryEntry, error) {
	return s.file.load()
}
