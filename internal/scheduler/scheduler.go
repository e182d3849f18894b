// Package scheduler fires one-shot reminder timers from a single background loop.
//
// Timers are held in memory only. A process restart loses every pending timer;
// the records they were created for are persisted elsewhere.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
)

// Handler is the function executed when a timer fires
type Handler func(ctx context.Context) error

// Timer is a pending one-shot timer
type Timer struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Deadline time.Time `json:"deadline"`
	Handler  Handler   `json:"-"`
}

// Config configures the scheduler
type Config struct {
	Tick    time.Duration    // Poll interval (default: 1s)
	Timeout time.Duration    // Per-firing timeout (default: 30s)
	Now     func() time.Time // Clock, overridable in tests
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Tick:    time.Second,
		Timeout: 30 * time.Second,
	}
}

// Scheduler polls its pending timers once per tick and fires the due ones
type Scheduler struct {
	timers  map[string]*Timer
	mu      sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped bool

	tick    time.Duration
	timeout time.Duration
	now     func() time.Time

	fired  int64
	failed int64
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Tick < 0 || cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: negative tick or timeout", core.ErrInvalidInput)
	}
	if cfg.Tick == 0 {
		cfg.Tick = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		timers:  make(map[string]*Timer),
		ctx:     ctx,
		cancel:  cancel,
		tick:    cfg.Tick,
		timeout: cfg.Timeout,
		now:     cfg.Now,
	}, nil
}

// Register adds a timer. It fires on the first tick at or after its deadline.
func (s *Scheduler) Register(timer *Timer) error {
	if timer.ID == "" {
		return fmt.Errorf("%w: timer ID", core.ErrMissingRequired)
	}
	if timer.Handler == nil {
		return fmt.Errorf("%w: timer handler", core.ErrMissingRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return core.ErrSchedulerStopped
	}
	if _, ok := s.timers[timer.ID]; ok {
		return fmt.Errorf("%w: timer %s already registered", core.ErrInvalidInput, timer.ID)
	}

	s.timers[timer.ID] = timer
	return nil
}

// After registers a timer that fires once delay has elapsed
func (s *Scheduler) After(id, name string, delay time.Duration, handler Handler) error {
	if delay < 0 {
		return core.ErrInvalidDelay
	}
	return s.Register(&Timer{
		ID:       id,
		Name:     name,
		Deadline: s.now().Add(delay),
		Handler:  handler,
	})
}

// Cancel removes a pending timer. It reports whether the timer was pending.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[id]
	delete(s.timers, id)
	return ok
}

// Pending returns the number of timers that have not fired yet
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Start launches the background loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return core.ErrSchedulerStopped
	}
	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.started = true
	s.wg.Add(1)
	go s.run()

	logging.WithField("tick", s.tick.String()).Debug("scheduler started")
	return nil
}

// Stop ends the loop and waits for it to exit. Pending timers are dropped.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.cancel()
	dropped := len(s.timers)
	s.timers = make(map[string]*Timer)
	s.mu.Unlock()

	s.wg.Wait()

	if dropped > 0 {
		logging.Info("scheduler stopped with %d pending timers", dropped)
	}
	return nil
}

// run is the main loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.fireDue()
		}
	}
}

// fireDue removes every due timer from the queue and executes it
func (s *Scheduler) fireDue() {
	now := s.now()

	s.mu.Lock()
	var due []*Timer
	for id, t := range s.timers {
		if !t.Deadline.After(now) {
			due = append(due, t)
			delete(s.timers, id)
		}
	}
	s.mu.Unlock()

	// Oldest deadline first
	sort.Slice(due, func(i, j int) bool {
		return due[i].Deadline.Before(due[j].Deadline)
	})

	for _, t := range due {
		if s.ctx.Err() != nil {
			return
		}
		s.execute(t)
	}
}

// execute runs one handler. A failing or panicking handler is counted and logged.
func (s *Scheduler) execute(t *Timer) {
	log := logging.WithFields(map[string]interface{}{
		"timer": t.ID,
		"name":  t.Name,
	})

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.Handler(ctx)
	}()

	s.mu.Lock()
	s.fired++
	if err != nil {
		s.failed++
	}
	s.mu.Unlock()

	if err != nil {
		log.Warn("timer failed: %v", err)
	}
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Started: s.started && !s.stopped,
		Pending: len(s.timers),
		Fired:   s.fired,
		Failed:  s.failed,
		Tick:    s.tick.String(),
	}
}

// Stats contains scheduler statistics
type Stats struct {
	Started bool   `json:"started"`
	Pending int    `json:"pending"`
	Fired   int64  `json:"fired"`
	Failed  int64  `json:"failed"`
	Tick    string `json:"tick"`
}
