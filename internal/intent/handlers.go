package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/email"
	"github.com/kaiassist/kai/internal/logging"
	"github.com/kaiassist/kai/internal/memory"
	"github.com/kaiassist/kai/internal/research"
	"github.com/kaiassist/kai/internal/tasks"
)

// Intent names
const (
	IntentStress    = "stress"
	IntentMode      = "mode"
	IntentCall      = "call"
	IntentText      = "text"
	IntentWhatsApp  = "whatsapp"
	IntentNavigate  = "navigate"
	IntentSpotify   = "spotify"
	IntentEmergency = "emergency"
	IntentReminder  = "reminder"
	IntentListTasks = "list_tasks"
	IntentResearch  = "research"
	IntentFinance   = "finance"
	IntentEmail     = "email"
	IntentContent   = "content"
	IntentFallback  = "fallback"
)

// Fixed scripts
const (
	FinanceScript = "💰 Financial Planning:\n" +
		"Write down your monthly income and expenses to see where the money goes.\n" +
		"Recommendation: save consistently, consider free ETF research sources for TFSA."

	ContentScript = "📌 Content Plan:\n" +
		"1. Post 3-5 times/week.\n" +
		"2. Focus on trends in your niche.\n" +
		"3. Include strong hooks and CTAs.\n" +
		"4. Track analytics weekly.\n" +
		"5. Use free editing/scheduling tools."

	EmailInfo = "I can send email when you give me details as to,subject,body " +
		"along with the sending account and its app password."
)

func fallbackText(cmd string) string {
	return fmt.Sprintf("I didn't catch %q. Try: reminder, list tasks, research, finance, content, email, call, text, navigate, play song.", cmd)
}

// argument prefers the text after the keyword, then the details field
func argument(in Input) string {
	if in.Rest != "" {
		return in.Rest
	}
	return strings.TrimSpace(in.Request.Details)
}

// -----------------------------------------------------------------------------
// Mode
// -----------------------------------------------------------------------------

func (r *Router) handleStress(ctx context.Context, in Input) (core.Response, bool) {
	if prev := r.state.Set(core.ModeEmpathetic); prev != core.ModeEmpathetic {
		logging.WithField("previous", string(prev)).Info("stress detected, switching to empathetic mode")
	}
	return core.Response{}, false
}

func (r *Router) handleMode(ctx context.Context, in Input) (core.Response, bool) {
	if in.Rest == "" {
		return r.reply(in.Request, fmt.Sprintf("Current mode: %s.", r.state.Mode())), true
	}

	mode := core.Mode(in.Rest)
	prev := r.state.Set(mode)
	logging.WithFields(map[string]interface{}{
		"previous": string(prev),
		"mode":     in.Rest,
	}).Info("mode changed")

	return r.replyIn(mode, fmt.Sprintf("Mode switched to %s.", mode)), true
}

// -----------------------------------------------------------------------------
// Automation
// -----------------------------------------------------------------------------

func (r *Router) handleCall(ctx context.Context, in Input) (core.Response, bool) {
	return r.directive(ctx, core.Directive{Kind: core.DirectiveCall, Args: []string{in.Rest}}), true
}

func (r *Router) handleText(ctx context.Context, in Input) (core.Response, bool) {
	contact, msg := splitContact(in.Rest)
	return r.directive(ctx, core.Directive{Kind: core.DirectiveText, Args: []string{contact, msg}}), true
}

func (r *Router) handleWhatsApp(ctx context.Context, in Input) (core.Response, bool) {
	contact, msg := splitContact(in.Rest)
	return r.directive(ctx, core.Directive{Kind: core.DirectiveWhatsApp, Args: []string{contact, msg}}), true
}

func (r *Router) handleNavigate(ctx context.Context, in Input) (core.Response, bool) {
	return r.directive(ctx, core.Directive{Kind: core.DirectiveNavigate, Args: []string{in.Rest}}), true
}

func (r *Router) handleSpotify(ctx context.Context, in Input) (core.Response, bool) {
	song := strings.TrimSpace(strings.TrimPrefix(argument(in), "play "))
	return r.directive(ctx, core.Directive{Kind: core.DirectiveSpotify, Args: []string{song}}), true
}

func (r *Router) handleEmergency(ctx context.Context, in Input) (core.Response, bool) {
	return r.directive(ctx, core.Directive{Kind: core.DirectiveEmergency}), true
}

// -----------------------------------------------------------------------------
// Tasks
// -----------------------------------------------------------------------------

func (r *Router) handleReminder(ctx context.Context, in Input) (core.Response, bool) {
	task, err := r.tasks.ScheduleArgs(ctx, argument(in))
	if err != nil {
		var fe *core.FormatError
		if errors.As(err, &fe) {
			return r.reply(in.Request, fe.Hint), true
		}
		logging.Error("schedule reminder: %v", err)
		return r.reply(in.Request, "Sorry, I couldn't save that reminder."), true
	}

	r.memory.Record(ctx, memory.TaskScheduled(task.Name))
	return r.reply(in.Request, fmt.Sprintf("Your reminder '%s' has been scheduled (priority: %s).", task.Name, task.Priority)), true
}

func (r *Router) handleListTasks(ctx context.Context, in Input) (core.Response, bool) {
	list, err := r.tasks.List(ctx)
	if err != nil {
		logging.Error("list tasks: %v", err)
		return r.reply(in.Request, "Sorry, I couldn't load your tasks."), true
	}
	return r.reply(in.Request, tasks.Format(list, r.tasks.Unit())), true
}

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

func (r *Router) handleResearch(ctx context.Context, in Input) (core.Response, bool) {
	topic := argument(in)
	if topic == "" {
		return r.reply(in.Request, "Tell me a topic to research, e.g. research black holes."), true
	}

	var summary string
	if r.research != nil {
		s, err := r.research.Summarize(ctx, topic)
		if err != nil {
			logging.WithField("topic", topic).Warn("research failed: %v", err)
		} else {
			summary = s
		}
	}

	r.memory.Record(ctx, memory.ResearchPerformed(topic))
	return r.reply(in.Request, research.Format(topic, summary)), true
}

func (r *Router) handleFinance(ctx context.Context, in Input) (core.Response, bool) {
	return r.reply(in.Request, FinanceScript), true
}

func (r *Router) handleContent(ctx context.Context, in Input) (core.Response, bool) {
	return r.reply(in.Request, ContentScript), true
}

func (r *Router) handleEmail(ctx context.Context, in Input) (core.Response, bool) {
	details := strings.TrimSpace(in.Request.Details)
	creds := in.Request.Credentials
	if r.mail == nil || details == "" || !(creds.Complete() || r.mailAccount) {
		return r.reply(in.Request, EmailInfo), true
	}

	msg, err := email.ParseDetails(details)
	if err != nil {
		var fe *core.FormatError
		if errors.As(err, &fe) {
			return r.reply(in.Request, fe.Hint), true
		}
		return r.reply(in.Request, EmailInfo), true
	}

	to := msg.To[0]
	if err := r.mail.SendMail(ctx, to, msg.Subject, msg.Body, creds); err != nil {
		logging.Warn("email not sent: %v", err)
		r.memory.Record(ctx, memory.EmailResult(false))
		return r.reply(in.Request, "Sorry, I couldn't send the email."), true
	}

	r.memory.Record(ctx, memory.EmailResult(true))
	return r.reply(in.Request, fmt.Sprintf("Your email to %s has been sent.", to)), true
}

func (r *Router) handleFallback(ctx context.Context, in Input) (core.Response, bool) {
	return r.reply(in.Request, fallbackText(in.Command)), true
}
