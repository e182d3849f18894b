// Package personality formats human-facing replies according to a mode.
//
// A Table maps mode names to a Style. Styles are data, so the table can be
// loaded from YAML and swapped at runtime without touching the router.
package personality

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kaiassist/kai/internal/core"
)

// DefaultStyleKey names the style applied to modes missing from the table
const DefaultStyleKey core.Mode = "default"

// Case transforms applied to the body text
const (
	CaseUpper = "upper"
	CaseLower = "lower"
)

// Style describes how one mode reformats text.
// Pieces are assembled as: Prefix, opener, body, closer, then Suffix.
type Style struct {
	Prefix  string   `yaml:"prefix,omitempty" json:"prefix,omitempty"`   // Fixed label before the opener
	Openers []string `yaml:"openers,omitempty" json:"openers,omitempty"` // One is picked per call
	Closers []string `yaml:"closers,omitempty" json:"closers,omitempty"` // One is picked per call
	Suffix  string   `yaml:"suffix,omitempty" json:"suffix,omitempty"`   // Appended with no separator
	Case    string   `yaml:"case,omitempty" json:"case,omitempty"`       // upper, lower or empty
	Compact bool     `yaml:"compact,omitempty" json:"compact,omitempty"` // Drop blank lines from the body
}

// Deterministic reports whether Wrap output for this style is fixed for a given text
func (s Style) Deterministic() bool {
	return len(s.Openers) <= 1 && len(s.Closers) <= 1
}

func (s Style) validate() error {
	switch s.Case {
	case "", CaseUpper, CaseLower:
		return nil
	default:
		return fmt.Errorf("unknown case %q", s.Case)
	}
}

// Table maps modes to styles
type Table map[core.Mode]Style

// Clone returns a deep copy
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for mode, s := range t {
		s.Openers = append([]string(nil), s.Openers...)
		s.Closers = append([]string(nil), s.Closers...)
		out[mode] = s
	}
	return out
}

// DefaultTable returns the built-in styles
func DefaultTable() Table {
	return Table{
		core.ModeCEO: {
			Openers: []string{"Strategic view:", "Here's the play:", "Big picture:"},
			Closers: []string{"What's the next move?", "Keep the momentum.", "Think long-term."},
		},
		core.ModeChill: {
			Openers: []string{"Hey,", "No stress,", "Alright,"},
			Closers: []string{"Easy does it.", "You got this.", "Take it easy."},
		},
		core.ModeStrict: {
			Case: CaseUpper,
		},
		core.ModeHumor: {
			Closers: []string{"😄", "(and that's no joke)", "🥁"},
		},
		core.ModeEmpathetic: {
			Openers: []string{"I hear you.", "That sounds like a lot.", "Take a breath."},
			Closers: []string{"💙", "I'm here for you.", "One step at a time."},
		},
		core.ModeBriefing: {
			Prefix:  "Executive briefing:",
			Compact: true,
		},
		core.ModeWhisper: {
			Case:   CaseLower,
			Suffix: "…",
		},
		DefaultStyleKey: {
			Openers: []string{"Here you go:"},
		},
	}
}

// tableFile is the on-disk layout
type tableFile struct {
	Modes map[string]Style `yaml:"modes"`
}

// LoadTable reads a YAML style table. Modes present in the file replace
// the built-in style of the same name; the others keep their defaults.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personality table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML style table merged over DefaultTable
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: personality table: %v", core.ErrInvalidInput, err)
	}

	table := DefaultTable()
	for name, style := range f.Modes {
		if err := style.validate(); err != nil {
			return nil, fmt.Errorf("%w: mode %s: %v", core.ErrInvalidInput, name, err)
		}
		table[core.Mode(name)] = style
	}
	return table, nil
}
