// Package memory implements the interaction log.
//
// The log is append-only and unbounded. Each entry is a short label
// describing an action, never the full payload of the command.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
)

// maxLabelSubject bounds the user-supplied part of a label
const maxLabelSubject = 60

// Repository persists memory entries
type Repository interface {
	Append(ctx context.Context, entry core.MemoryEntry) error
	All(ctx context.Context) ([]core.MemoryEntry, error)
}

// Log appends timestamped entries to a repository
type Log struct {
	mu      sync.Mutex
	repo    Repository
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewLog creates a memory log backed by repo
func NewLog(repo Repository) *Log {
	return &Log{
		repo:    repo,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		now:     time.Now,
	}
}

// Append records one entry and returns it once it is durable
func (l *Log) Append(ctx context.Context, text string) (core.MemoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	entry := core.MemoryEntry{
		ID:        ulid.MustNew(ulid.Timestamp(now), l.entropy).String(),
		Timestamp: now.Format(time.RFC3339),
		Entry:     text,
	}

	if err := l.repo.Append(ctx, entry); err != nil {
		return core.MemoryEntry{}, fmt.Errorf("failed to append memory entry: %w", err)
	}

	logging.WithField("entry_id", entry.ID).Debug("memory: %s", text)
	return entry, nil
}

// Record appends an entry and logs, rather than returns, a failure.
// Handlers use it so a storage problem never fails the command itself.
func (l *Log) Record(ctx context.Context, text string) {
	if _, err := l.Append(ctx, text); err != nil {
		logging.Error("memory log: %v", err)
	}
}

// Entries returns every entry in insertion order
func (l *Log) Entries(ctx context.Context) ([]core.MemoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory log: %w", err)
	}
	return entries, nil
}

// -----------------------------------------------------------------------------
// Labels
// -----------------------------------------------------------------------------

// TaskScheduled labels a successful reminder
func TaskScheduled(name string) string {
	return "Task scheduled: " + truncate(name)
}

// AutomationTriggered labels an emitted directive. Arguments are not recorded.
func AutomationTriggered(kind core.DirectiveKind) string {
	return "Automation triggered: " + string(kind)
}

// ResearchPerformed labels a research request
func ResearchPerformed(topic string) string {
	return "Research performed: " + truncate(topic)
}

// EmailResult labels a mail attempt. Recipients and credentials are not recorded.
func EmailResult(ok bool) string {
	if ok {
		return "Email sent"
	}
	return "Email failed"
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxLabelSubject {
		return s
	}
	r := []rune(s)
	return string(r[:maxLabelSubject]) + "…"
}
