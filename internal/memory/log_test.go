package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/storage"
)

// testDB creates an in-memory SQLite database for testing
func testDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(storage.Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

type failingRepo struct{}

func (failingRepo) Append(context.Context, core.MemoryEntry) error {
	return errors.New("read-only")
}

func (failingRepo) All(context.Context) ([]core.MemoryEntry, error) {
	return nil, errors.New("read-only")
}

func TestLog_Append(t *testing.T) {
	ctx := context.Background()
	log := NewLog(storage.NewFileMemoryStore(filepath.Join(t.TempDir(), "memory.json")))
	log.now = func() time.Time { return time.Date(2026, 7, 1, 8, 0, 0, 0, time.FixedZone("X", 3600)) }

	entry, err := log.Append(ctx, "Task scheduled: buy milk")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if entry.ID == "" {
		t.Error("entry ID not set")
	}
	if entry.Timestamp != "2026-07-01T07:00:00Z" {
		t.Errorf("Timestamp = %q, want UTC RFC3339", entry.Timestamp)
	}
	if entry.Entry != "Task scheduled: buy milk" {
		t.Errorf("Entry = %q", entry.Entry)
	}
}

func TestLog_InsertionOrder(t *testing.T) {
	backends := map[string]Repository{
		"file":   storage.NewFileMemoryStore(filepath.Join(t.TempDir(), "memory.json")),
		"sqlite": storage.NewMemoryStore(testDB(t)),
	}

	for name, repo := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := NewLog(repo)

			want := []string{"first", "second", "third"}
			for _, text := range want {
				if _, err := log.Append(ctx, text); err != nil {
					t.Fatal(err)
				}
			}

			entries, err := log.Entries(ctx)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Entry)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}

			// ULIDs from one log sort in insertion order
			for i := 1; i < len(entries); i++ {
				if entries[i-1].ID >= entries[i].ID {
					t.Errorf("ids not increasing: %s >= %s", entries[i-1].ID, entries[i].ID)
				}
			}
		})
	}
}

func TestLog_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.json")

	first := NewLog(storage.NewFileMemoryStore(path))
	written, err := first.Append(ctx, "Research performed: go")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := NewLog(storage.NewFileMemoryStore(path)).Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]core.MemoryEntry{written}, entries); diff != "" {
		t.Errorf("entries after restart (-want +got):\n%s", diff)
	}
}

func TestLog_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	log := NewLog(storage.NewFileMemoryStore(filepath.Join(t.TempDir(), "memory.json")))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Record(ctx, "Email sent")
		}()
	}
	wg.Wait()

	entries, err := log.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 25 {
		t.Errorf("got %d entries, want 25", len(entries))
	}
}

func TestLog_RepositoryErrors(t *testing.T) {
	log := NewLog(failingRepo{})

	if _, err := log.Append(context.Background(), "x"); err == nil {
		t.Error("Append should surface repository errors")
	}
	if _, err := log.Entries(context.Background()); err == nil {
		t.Error("Entries should surface repository errors")
	}

	// Record swallows the error
	log.Record(context.Background(), "x")
}

func TestLabels(t *testing.T) {
	long := strings.Repeat("a", 100)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"task", TaskScheduled("buy milk"), "Task scheduled: buy milk"},
		{"task truncated", TaskScheduled(long), "Task scheduled: " + strings.Repeat("a", maxLabelSubject) + "…"},
		{"automation", AutomationTriggered(core.DirectiveText), "Automation triggered: TEXT_CONTACT"},
		{"research", ResearchPerformed("quantum computing"), "Research performed: quantum computing"},
		{"email ok", EmailResult(true), "Email sent"},
		{"email failed", EmailResult(false), "Email failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
