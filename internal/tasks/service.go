// Package tasks implements the durable reminder store.
//
// Every scheduled task is persisted before Schedule returns. The reminder
// itself is an in-memory timer: it fires at most once and is lost on restart.
package tasks

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
	"github.com/kaiassist/kai/internal/scheduler"
)

// FormatHint is shown to the user when reminder arguments do not parse
const FormatHint = "Format error for reminder. Use: task_name, delay, priority (high/medium/low)"

// Repository persists tasks
type Repository interface {
	Append(ctx context.Context, task core.Task) error
	All(ctx context.Context) ([]core.Task, error)
}

// Timers registers one-shot reminder timers
type Timers interface {
	After(id, name string, delay time.Duration, handler scheduler.Handler) error
}

// Config configures the service
type Config struct {
	Unit core.DelayUnit   // Unit of Task.Delay (default: seconds)
	Now  func() time.Time // Clock, overridable in tests
}

// Service schedules and lists tasks
type Service struct {
	mu     sync.Mutex
	repo   Repository
	timers Timers
	unit   core.DelayUnit
	now    func() time.Time
}

// NewService creates a task service. timers may be nil, in which case
// tasks are persisted but no reminder fires.
func NewService(repo Repository, timers Timers, cfg Config) *Service {
	if cfg.Unit == "" {
		cfg.Unit = core.DelaySeconds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:   repo,
		timers: timers,
		unit:   cfg.Unit,
		now:    cfg.Now,
	}
}

// Unit returns the delay unit tasks are scheduled in
func (s *Service) Unit() core.DelayUnit {
	return s.unit
}

// ScheduleArgs parses "name, delay[, priority]" and schedules the task
func (s *Service) ScheduleArgs(ctx context.Context, args string) (core.Task, error) {
	parts := strings.Split(args, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Task{}, &core.FormatError{
			Hint: FormatHint,
			Err:  fmt.Errorf("%w: want 2 or 3 fields, got %d", core.ErrInvalidTaskFormat, len(parts)),
		}
	}

	priority := ""
	if len(parts) == 3 {
		priority = parts[2]
	}
	return s.Schedule(ctx, parts[0], parts[1], priority)
}

// Schedule validates and persists a task, then arms its reminder.
// Validation failures return a *core.FormatError and leave the store unchanged.
func (s *Service) Schedule(ctx context.Context, name, delay, priority string) (core.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Task{}, &core.FormatError{
			Hint: FormatHint,
			Err:  fmt.Errorf("%w: task name", core.ErrMissingRequired),
		}
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(delay), 64)
	if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) || d >= s.unit.MaxDelay() {
		return core.Task{}, &core.FormatError{
			Hint: FormatHint,
			Err:  fmt.Errorf("%w: %q", core.ErrInvalidDelay, strings.TrimSpace(delay)),
		}
	}

	task := core.Task{
		ID:       core.TaskID(uuid.New().String()),
		Name:     name,
		Delay:    d,
		Priority: core.ParsePriority(priority),
		Created:  s.now().UTC(),
	}

	s.mu.Lock()
	err = s.repo.Append(ctx, task)
	s.mu.Unlock()
	if err != nil {
		return core.Task{}, fmt.Errorf("failed to persist task: %w", err)
	}

	log := logging.WithFields(map[string]interface{}{
		"task_id":  string(task.ID),
		"priority": string(task.Priority),
	})

	if s.timers != nil {
		if err := s.timers.After(string(task.ID), task.Name, s.unit.Duration(task.Delay), remind(task)); err != nil {
			// The record is durable; only the reminder is lost
			log.Warn("reminder not armed: %v", err)
		}
	}

	log.Debug("task scheduled")
	return task, nil
}

// remind returns the timer handler for a task
func remind(task core.Task) scheduler.Handler {
	return func(ctx context.Context) error {
		logging.WithField("task_id", string(task.ID)).Info(ReminderLine(task))
		return nil
	}
}

// ReminderLine renders the line logged when a reminder fires
func ReminderLine(task core.Task) string {
	return fmt.Sprintf("⏰ [%s] Reminder: %s", strings.ToUpper(string(task.Priority)), task.Name)
}

// List returns every task ordered by priority rank, insertion order on ties
func (s *Service) List(ctx context.Context) ([]core.Task, error) {
	s.mu.Lock()
	tasks, err := s.repo.All(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})
	return tasks, nil
}

// Format renders a task list for a human reader
func Format(tasks []core.Task, unit core.DelayUnit) string {
	if len(tasks) == 0 {
		return "No tasks scheduled."
	}

	var sb strings.Builder
	sb.WriteString("Your tasks:")
	for i, t := range tasks {
		fmt.Fprintf(&sb, "\n%d. [%s] %s (in %s %s)", i+1, t.Priority, t.Name,
			strconv.FormatFloat(t.Delay, 'f', -1, 64), unit)
	}
	return sb.String()
}
