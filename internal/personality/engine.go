package personality

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/kaiassist/kai/internal/core"
)

// Rand picks openers and closers. Tests inject a fixed source.
type Rand interface {
	Intn(n int) int
}

// globalRand uses the concurrency-safe package-level source
type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// Engine wraps text in the style of a mode
type Engine struct {
	mu    sync.RWMutex
	table Table
	rnd   Rand
}

// NewEngine creates an engine. A nil table means DefaultTable,
// a nil rnd means the package-level math/rand source.
func NewEngine(table Table, rnd Rand) *Engine {
	if table == nil {
		table = DefaultTable()
	}
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Engine{table: table.Clone(), rnd: rnd}
}

// SetTable replaces the style table
func (e *Engine) SetTable(table Table) {
	table = table.Clone()
	e.mu.Lock()
	e.table = table
	e.mu.Unlock()
}

// Table returns a copy of the current style table
func (e *Engine) Table() Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table.Clone()
}

// Style returns the style used for mode and whether mode is in the table
func (e *Engine) Style(mode core.Mode) (Style, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if s, ok := e.table[mode]; ok {
		return s, true
	}
	return e.table[DefaultStyleKey], false
}

// Wrap formats text for mode. Modes not in the table get the default style.
func (e *Engine) Wrap(text string, mode core.Mode) string {
	style, _ := e.Style(mode)
	return e.apply(style, text)
}

func (e *Engine) apply(s Style, text string) string {
	body := text
	if s.Compact {
		body = dropBlankLines(body)
	}
	switch s.Case {
	case CaseUpper:
		body = strings.ToUpper(body)
	case CaseLower:
		body = strings.ToLower(body)
	}

	parts := make([]string, 0, 4)
	for _, p := range []string{s.Prefix, e.pick(s.Openers), body, e.pick(s.Closers)} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, " ") + s.Suffix
}

func (e *Engine) pick(pool []string) string {
	switch len(pool) {
	case 0:
		return ""
	case 1:
		return pool[0]
	}
	i := e.rnd.Intn(len(pool))
	if i < 0 || i >= len(pool) {
		i = 0
	}
	return pool[i]
}

func dropBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
