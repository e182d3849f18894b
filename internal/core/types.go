// Package core defines the fundamental types for Kai.
// Everything the router, the stores and the transport exchange lives here.
package core

import (
	"math"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// TASK - A durable reminder record
// -----------------------------------------------------------------------------

// TaskID is a type-safe identifier for tasks
type TaskID string

// Priority ranks a task in listings
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalizes a user-supplied priority.
// Empty or unrecognized values fall back to medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Rank returns the sort rank of a priority (lower sorts first).
// Values outside the known set rank as medium.
func (p Priority) Rank() int {
	switch Priority(strings.ToLower(string(p))) {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// DelayUnit is the unit a task delay is expressed in.
// It is fixed per configuration, not per task.
type DelayUnit string

const (
	DelaySeconds DelayUnit = "seconds"
	DelayMinutes DelayUnit = "minutes"
)

// Duration converts a delay in this unit to a time.Duration
func (u DelayUnit) Duration(delay float64) time.Duration {
	if u == DelayMinutes {
		return time.Duration(delay * float64(time.Minute))
	}
	return time.Duration(delay * float64(time.Second))
}

// MaxDelay is the largest delay in this unit that fits a time.Duration
func (u DelayUnit) MaxDelay() float64 {
	return float64(math.MaxInt64) / float64(u.Duration(1))
}

// Task is a reminder created by the router.
// Never mutated after creation and never deleted.
type Task struct {
	ID       TaskID    `json:"id"`
	Name     string    `json:"name"`
	Delay    float64   `json:"delay"`    // In the configured DelayUnit
	Priority Priority  `json:"priority"` // high, medium, low
	Created  time.Time `json:"created"`
}

// -----------------------------------------------------------------------------
// MEMORY - The interaction log
// -----------------------------------------------------------------------------

// MemoryEntry is one notable event. Append-only, insertion ordered.
type MemoryEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // RFC3339
	Entry     string `json:"entry"`
}

// -----------------------------------------------------------------------------
// MODE - The personality the assistant speaks with
// -----------------------------------------------------------------------------

// Mode is a personality mode name. Any string is accepted;
// the constants below are the ones the default table knows about.
type Mode string

const (
	ModeCEO        Mode = "ceo"
	ModeChill      Mode = "chill"
	ModeStrict     Mode = "strict"
	ModeHumor      Mode = "humor"
	ModeEmpathetic Mode = "empathetic"
	ModeBriefing   Mode = "briefing"
	ModeWhisper    Mode = "whisper"
)

// DefaultMode is the mode a fresh process starts in
const DefaultMode = ModeCEO

// KnownModes lists the built-in modes in display order
func KnownModes() []Mode {
	return []Mode{ModeCEO, ModeChill, ModeStrict, ModeHumor, ModeEmpathetic, ModeBriefing, ModeWhisper}
}

// -----------------------------------------------------------------------------
// DIRECTIVE - Machine instructions for the host device
// -----------------------------------------------------------------------------

// DirectiveKind names the action a host should perform
type DirectiveKind string

const (
	DirectiveCall      DirectiveKind = "CALL_CONTACT"
	DirectiveText      DirectiveKind = "TEXT_CONTACT"
	DirectiveWhatsApp  DirectiveKind = "WHATSAPP_CONTACT"
	DirectiveNavigate  DirectiveKind = "NAVIGATE"
	DirectiveSpotify   DirectiveKind = "SPOTIFY_PLAY"
	DirectiveEmergency DirectiveKind = "EMERGENCY_CONFIRM"
)

// Directive is a structured instruction for the host automation executor.
// It is never personality wrapped.
type Directive struct {
	Kind DirectiveKind
	Args []string
}

// String renders the colon-delimited wire form, e.g. TEXT_CONTACT:mom:hi
func (d Directive) String() string {
	if len(d.Args) == 0 {
		return string(d.Kind)
	}
	return string(d.Kind) + ":" + strings.Join(d.Args, ":")
}

// -----------------------------------------------------------------------------
// REQUEST / RESPONSE - What the transport hands the router
// -----------------------------------------------------------------------------

// Credentials are per-request mail credentials. Never logged.
type Credentials struct {
	Username string `json:"-"`
	Password string `json:"-"`
}

// Complete reports whether both fields are present
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != ""
}

// Request is one inbound command
type Request struct {
	Command     string      // Lower-cased, trimmed by the transport
	Details     string      // Optional free-form arguments
	Mode        Mode        // Optional per-request mode override
	Credentials Credentials // Optional mail credentials
}

// ResponseKind tells the transport how the text was produced
type ResponseKind string

const (
	ResponseText      ResponseKind = "text"
	ResponseDirective ResponseKind = "directive"
)

// Response is the single result of handling a Request
type Response struct {
	Kind   ResponseKind `json:"kind"`
	Intent string       `json:"intent"`
	Text   string       `json:"response"`
	Mode   Mode         `json:"mode"`
}
