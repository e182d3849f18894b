// Package intent classifies free-text commands and dispatches them.
//
// Classification is an ordered list of rules. Each rule pairs a keyword
// matcher with a handler; the first rule whose handler completes the
// request produces the single response. A handler may decline by
// returning false, in which case evaluation continues with the next rule.
package intent

import (
	"context"
	"fmt"
	"sync"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/logging"
	"github.com/kaiassist/kai/internal/memory"
	"github.com/kaiassist/kai/internal/personality"
	"github.com/kaiassist/kai/internal/tasks"
)

// Researcher produces a best-effort summary for a topic
type Researcher interface {
	Summarize(ctx context.Context, topic string) (string, error)
}

// Mailer delivers one plain-text message
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string, creds core.Credentials) error
}

// Input is what a rule handler sees
type Input struct {
	Request core.Request
	Command string // Normalized command
	Rest    string // Text after the matched keyword
}

// HandlerFunc handles a matched command. Returning false passes the
// command on to the next rule.
type HandlerFunc func(r *Router, ctx context.Context, in Input) (core.Response, bool)

// Rule is one entry in the classification order
type Rule struct {
	Name   string
	Match  Matcher
	Handle HandlerFunc
}

// Config wires the router to its collaborators
type Config struct {
	Tasks  *tasks.Service
	Memory *memory.Log
	Engine *personality.Engine
	State  *personality.State

	Research Researcher // Optional
	Mail     Mailer     // Optional

	// MailAccount is set when the mailer can send without request credentials
	MailAccount bool
}

// Router dispatches commands to intent handlers
type Router struct {
	tasks  *tasks.Service
	memory *memory.Log
	engine *personality.Engine
	state  *personality.State

	research    Researcher
	mail        Mailer
	mailAccount bool

	rules []Rule

	mu     sync.Mutex
	counts map[string]int
}

// NewRouter creates a router with the default rule order
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Tasks == nil || cfg.Memory == nil || cfg.Engine == nil || cfg.State == nil {
		return nil, fmt.Errorf("%w: router needs tasks, memory, engine and state", core.ErrMissingRequired)
	}
	return &Router{
		tasks:       cfg.Tasks,
		memory:      cfg.Memory,
		engine:      cfg.Engine,
		state:       cfg.State,
		research:    cfg.Research,
		mail:        cfg.Mail,
		mailAccount: cfg.MailAccount,
		rules:       DefaultRules(),
		counts:      make(map[string]int),
	}, nil
}

// DefaultRules returns the classification order
func DefaultRules() []Rule {
	return []Rule{
		{Name: IntentStress, Match: Keywords("tired", "stressed", "overwhelmed"), Handle: (*Router).handleStress},
		{Name: IntentMode, Match: Prefix("mode"), Handle: (*Router).handleMode},
		{Name: IntentCall, Match: Keywords("call"), Handle: (*Router).handleCall},
		{Name: IntentText, Match: Keywords("text"), Handle: (*Router).handleText},
		{Name: IntentWhatsApp, Match: Keywords("whatsapp"), Handle: (*Router).handleWhatsApp},
		{Name: IntentNavigate, Match: Keywords("navigate"), Handle: (*Router).handleNavigate},
		{Name: IntentSpotify, Match: Keywords("spotify", "play song", "play music"), Handle: (*Router).handleSpotify},
		{Name: IntentEmergency, Match: Keywords("emergency"), Handle: (*Router).handleEmergency},
		{Name: IntentReminder, Match: Keywords("reminder", "task"), Handle: (*Router).handleReminder},
		{Name: IntentListTasks, Match: Keywords("list tasks"), Handle: (*Router).handleListTasks},
		{Name: IntentResearch, Match: Keywords("research"), Handle: (*Router).handleResearch},
		{Name: IntentFinance, Match: Keywords("finance", "invest"), Handle: (*Router).handleFinance},
		{Name: IntentEmail, Match: Keywords("email"), Handle: (*Router).handleEmail},
		{Name: IntentContent, Match: Keywords("content", "monetize"), Handle: (*Router).handleContent},
		{Name: IntentFallback, Match: Always(), Handle: (*Router).handleFallback},
	}
}

// Rules returns the rule names in evaluation order
func (r *Router) Rules() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name
	}
	return names
}

// Handle classifies a command and returns exactly one response
func (r *Router) Handle(ctx context.Context, req core.Request) core.Response {
	cmd := Normalize(req.Command)
	req.Command = cmd

	for _, rule := range r.rules {
		rest, ok := rule.Match(cmd)
		if !ok {
			continue
		}
		resp, done := rule.Handle(r, ctx, Input{Request: req, Command: cmd, Rest: rest})
		if !done {
			continue
		}

		resp.Intent = rule.Name
		r.count(rule.Name)
		logging.WithFields(map[string]interface{}{
			"intent": rule.Name,
			"kind":   string(resp.Kind),
			"mode":   string(resp.Mode),
		}).Debug("command classified")
		return resp
	}

	// Unreachable while the fallback rule is last
	r.count(IntentFallback)
	return r.reply(req, fallbackText(cmd))
}

// Stats returns how many commands each intent has handled
func (r *Router) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

func (r *Router) count(name string) {
	r.mu.Lock()
	r.counts[name]++
	r.mu.Unlock()
}

// modeFor returns the mode a response to req is styled with.
// A per-request override wins over the process-wide mode.
func (r *Router) modeFor(req core.Request) core.Mode {
	if req.Mode != "" {
		return req.Mode
	}
	return r.state.Mode()
}

// reply wraps human-facing text in the request's mode
func (r *Router) reply(req core.Request, text string) core.Response {
	mode := r.modeFor(req)
	return r.replyIn(mode, text)
}

func (r *Router) replyIn(mode core.Mode, text string) core.Response {
	return core.Response{
		Kind: core.ResponseText,
		Text: r.engine.Wrap(text, mode),
		Mode: mode,
	}
}

// directive returns a machine instruction, never wrapped
func (r *Router) directive(ctx context.Context, d core.Directive) core.Response {
	r.memory.Record(ctx, memory.AutomationTriggered(d.Kind))
	return core.Response{
		Kind: core.ResponseDirective,
		Text: d.String(),
		Mode: r.state.Mode(),
	}
}
