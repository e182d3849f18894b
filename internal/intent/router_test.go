package intent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/memory"
	"github.com/kaiassist/kai/internal/personality"
	"github.com/kaiassist/kai/internal/scheduler"
	"github.com/kaiassist/kai/internal/storage"
	"github.com/kaiassist/kai/internal/tasks"
	"github.com/kaiassist/kai/internal/testutil"
)

type harness struct {
	router   *Router
	tasks    *tasks.Service
	memory   *memory.Log
	state    *personality.State
	engine   *personality.Engine
	timers   *testutil.MockTimers
	research *testutil.MockResearcher
	mail     *testutil.MockMailer
	dir      string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessIn(t, t.TempDir())
}

func newHarnessIn(t *testing.T, dir string) *harness {
	t.Helper()

	h := &harness{
		timers:   &testutil.MockTimers{},
		research: &testutil.MockResearcher{},
		mail:     &testutil.MockMailer{},
		dir:      dir,
	}
	h.tasks = tasks.NewService(storage.NewFileTaskStore(filepath.Join(dir, "tasks.json")), h.timers, tasks.Config{})
	h.memory = memory.NewLog(storage.NewFileMemoryStore(filepath.Join(dir, "memory.json")))
	h.engine = personality.NewEngine(nil, testutil.FixedRand(0))
	h.state = personality.NewState("")

	router, err := NewRouter(Config{
		Tasks:    h.tasks,
		Memory:   h.memory,
		Engine:   h.engine,
		State:    h.state,
		Research: h.research,
		Mail:     h.mail,
	})
	require.NoError(t, err)
	h.router = router
	return h
}

func (h *harness) handle(t *testing.T, cmd string) core.Response {
	t.Helper()
	return h.router.Handle(testutil.TestContext(t), core.Request{Command: cmd})
}

func (h *harness) entries(t *testing.T) []string {
	t.Helper()
	entries, err := h.memory.Entries(context.Background())
	require.NoError(t, err)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Entry
	}
	return out
}

func (h *harness) taskList(t *testing.T) []core.Task {
	t.Helper()
	list, err := h.tasks.List(context.Background())
	require.NoError(t, err)
	return list
}

func TestNewRouter_MissingCollaborators(t *testing.T) {
	_, err := NewRouter(Config{})
	assert.ErrorIs(t, err, core.ErrMissingRequired)
}

func TestRouter_Rules(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{
		"stress", "mode", "call", "text", "whatsapp", "navigate", "spotify", "emergency",
		"reminder", "list_tasks", "research", "finance", "email", "content", "fallback",
	}, h.router.Rules())
}

// =============================================================================
// Automation
// =============================================================================

func TestRouter_Directives(t *testing.T) {
	tests := []struct {
		cmd    string
		want   string
		intent string
	}{
		{"call mom", "CALL_CONTACT:mom", IntentCall},
		{"  Call Mom  ", "CALL_CONTACT:mom", IntentCall},
		{"please call dr. smith", "CALL_CONTACT:dr. smith", IntentCall},
		{"text mom: running late", "TEXT_CONTACT:mom:running late", IntentText},
		{"text mom running late", "TEXT_CONTACT:mom:running late", IntentText},
		{"text mom", "TEXT_CONTACT:mom:", IntentText},
		{"whatsapp alex: see you at 5", "WHATSAPP_CONTACT:alex:see you at 5", IntentWhatsApp},
		{"whatsapp alex", "WHATSAPP_CONTACT:alex:", IntentWhatsApp},
		{"text mom see you at 5:30", "TEXT_CONTACT:mom:see you at 5:30", IntentText},
		{"whatsapp alex meet at 10:15 ok", "WHATSAPP_CONTACT:alex:meet at 10:15 ok", IntentWhatsApp},
		{"text mom:dinner at 7:45", "TEXT_CONTACT:mom:dinner at 7:45", IntentText},
		{"navigate home", "NAVIGATE:home", IntentNavigate},
		{"spotify play bohemian rhapsody", "SPOTIFY_PLAY:bohemian rhapsody", IntentSpotify},
		{"play song despacito", "SPOTIFY_PLAY:despacito", IntentSpotify},
		{"play music lofi beats", "SPOTIFY_PLAY:lofi beats", IntentSpotify},
		{"emergency", "EMERGENCY_CONFIRM", IntentEmergency},
		{"this is an emergency", "EMERGENCY_CONFIRM", IntentEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			h := newHarness(t)

			resp := h.handle(t, tt.cmd)

			assert.Equal(t, core.ResponseDirective, resp.Kind)
			assert.Equal(t, tt.want, resp.Text)
			assert.Equal(t, tt.intent, resp.Intent)
			assert.Len(t, h.entries(t), 1)
		})
	}
}

func TestRouter_CallMom_IsNeverWrapped(t *testing.T) {
	for _, mode := range append(core.KnownModes(), "pirate") {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t)
			h.state.Set(mode)

			resp := h.handle(t, "call mom")

			assert.Equal(t, "CALL_CONTACT:mom", resp.Text)
		})
	}
}

func TestRouter_Directive_MemoryLabel(t *testing.T) {
	h := newHarness(t)

	h.handle(t, "text mom: the door code is 4411")

	entries := h.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "Automation triggered: TEXT_CONTACT", entries[0])
	assert.NotContains(t, entries[0], "4411")
}

func TestRouter_SpotifyUsesDetails(t *testing.T) {
	h := newHarness(t)

	resp := h.router.Handle(context.Background(), testutil.NewRequest("play song").WithDetails("take five").Build())

	assert.Equal(t, "SPOTIFY_PLAY:take five", resp.Text)
}

// =============================================================================
// Mode
// =============================================================================

func TestRouter_ModeChange(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "mode chill")

	assert.Equal(t, core.ModeChill, h.state.Mode())
	assert.Equal(t, IntentMode, resp.Intent)
	assert.Equal(t, core.ModeChill, resp.Mode)
	assert.Equal(t, "Hey, Mode switched to chill. Easy does it.", resp.Text)
}

func TestRouter_ModePersistsAcrossCommands(t *testing.T) {
	h := newHarness(t)

	h.handle(t, "mode chill")
	resp := h.handle(t, "finance")

	assert.Equal(t, IntentFinance, resp.Intent)
	assert.Equal(t, core.ModeChill, resp.Mode)
	assert.Equal(t, h.engine.Wrap(FinanceScript, core.ModeChill), resp.Text)
	assert.True(t, strings.HasPrefix(resp.Text, "Hey, 💰 Financial Planning:"))

	resp = h.handle(t, "content ideas")
	assert.Equal(t, core.ModeChill, resp.Mode)
}

func TestRouter_ModeAcceptsUnknownNames(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "mode pirate")

	assert.Equal(t, core.Mode("pirate"), h.state.Mode())
	assert.Equal(t, "Here you go: Mode switched to pirate.", resp.Text)
}

func TestRouter_ModeStrictConfirmation(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "mode strict")

	assert.Equal(t, "MODE SWITCHED TO STRICT.", resp.Text)
}

func TestRouter_ModeWithoutName(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "mode")

	assert.Equal(t, core.DefaultMode, h.state.Mode())
	assert.Contains(t, resp.Text, "Current mode: ceo.")
}

func TestRouter_ModeMustLeadTheCommand(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "what mode is this")

	assert.Equal(t, IntentFallback, resp.Intent)
	assert.Equal(t, core.DefaultMode, h.state.Mode())
}

func TestRouter_RequestModeOverride(t *testing.T) {
	h := newHarness(t)

	resp := h.router.Handle(context.Background(), testutil.NewRequest("finance").WithMode(core.ModeStrict).Build())

	assert.Equal(t, strings.ToUpper(FinanceScript), resp.Text)
	assert.Equal(t, core.ModeStrict, resp.Mode)
	assert.Equal(t, core.DefaultMode, h.state.Mode(), "override must not change the global mode")
}

// =============================================================================
// Stress
// =============================================================================

func TestRouter_StressEscalation(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "I'm so tired today")

	assert.Equal(t, core.ModeEmpathetic, h.state.Mode())
	assert.Equal(t, IntentFallback, resp.Intent)
	assert.Equal(t, core.ModeEmpathetic, resp.Mode)
	assert.True(t, strings.HasPrefix(resp.Text, "I hear you. "), resp.Text)
}

func TestRouter_StressContinuesClassification(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "i'm stressed, call mom")

	assert.Equal(t, core.ModeEmpathetic, h.state.Mode())
	assert.Equal(t, "CALL_CONTACT:mom", resp.Text)
}

func TestRouter_StressPersists(t *testing.T) {
	h := newHarness(t)

	h.handle(t, "feeling overwhelmed")
	resp := h.handle(t, "finance")

	assert.Equal(t, core.ModeEmpathetic, resp.Mode)
}

func TestRouter_StressNeedsWholeWord(t *testing.T) {
	h := newHarness(t)

	h.handle(t, "tiredness research")

	assert.Equal(t, core.DefaultMode, h.state.Mode())
}

// =============================================================================
// Tasks
// =============================================================================

func TestRouter_Reminder(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "reminder stretch, 10, high")

	assert.Equal(t, IntentReminder, resp.Intent)
	assert.Equal(t, core.ResponseText, resp.Kind)
	assert.Contains(t, resp.Text, "Your reminder 'stretch' has been scheduled (priority: high).")

	list := h.taskList(t)
	require.Len(t, list, 1)
	assert.Equal(t, "stretch", list[0].Name)
	assert.Equal(t, 10.0, list[0].Delay)
	assert.Equal(t, core.PriorityHigh, list[0].Priority)

	require.Len(t, h.timers.Timers(), 1)
	assert.Equal(t, string(list[0].ID), h.timers.Timers()[0].ID)

	assert.Equal(t, []string{"Task scheduled: stretch"}, h.entries(t))
}

func TestRouter_ReminderFromDetails(t *testing.T) {
	h := newHarness(t)

	resp := h.router.Handle(context.Background(), testutil.NewRequest("reminder").WithDetails("water plants, 30").Build())

	assert.Contains(t, resp.Text, "'water plants'")
	require.Len(t, h.taskList(t), 1)
	assert.Equal(t, core.PriorityMedium, h.taskList(t)[0].Priority)
}

func TestRouter_MalformedReminderLeavesStoreUnchanged(t *testing.T) {
	inputs := []string{
		"reminder buy milk",
		"reminder buy milk, soon",
		"task , 5",
		"reminder see dentist, -3, high",
		"reminder a, 1, high, extra",
		"reminder far future, 1e10, high",
	}

	for _, cmd := range inputs {
		t.Run(cmd, func(t *testing.T) {
			h := newHarness(t)
			before := h.taskList(t)

			resp := h.handle(t, cmd)

			assert.Equal(t, IntentReminder, resp.Intent)
			assert.Contains(t, resp.Text, tasks.FormatHint)
			assert.Equal(t, before, h.taskList(t))
			assert.Empty(t, h.entries(t))
			assert.Empty(t, h.timers.Timers())
		})
	}
}

func TestRouter_ReminderTimerFailureStillSaves(t *testing.T) {
	h := newHarness(t)
	h.timers.AfterFunc = func(id, name string, delay time.Duration, handler scheduler.Handler) error {
		return core.ErrSchedulerStopped
	}

	resp := h.handle(t, "task ship release, 0, low")

	assert.Contains(t, resp.Text, "scheduled")
	assert.Len(t, h.taskList(t), 1)
}

func TestRouter_ListTasks(t *testing.T) {
	h := newHarness(t)
	h.state.Set(core.ModeStrict)

	h.handle(t, "reminder b, 5, low")
	h.handle(t, "reminder a, 10, high")
	resp := h.handle(t, "list tasks")

	assert.Equal(t, IntentListTasks, resp.Intent)
	assert.Equal(t, "YOUR TASKS:\n1. [HIGH] A (IN 10 SECONDS)\n2. [LOW] B (IN 5 SECONDS)", resp.Text)
}

func TestRouter_ListTasksEmpty(t *testing.T) {
	h := newHarness(t)
	h.state.Set(core.ModeWhisper)

	resp := h.handle(t, "list tasks")

	assert.Equal(t, "no tasks scheduled.…", resp.Text)
}

func TestRouter_TasksSurviveRestart(t *testing.T) {
	dir := t.TempDir()

	first := newHarnessIn(t, dir)
	first.handle(t, "reminder renew passport, 60, high")
	before := first.taskList(t)

	second := newHarnessIn(t, dir)
	after := second.taskList(t)

	assert.Equal(t, before, after)
	assert.Equal(t, first.entries(t), second.entries(t))
	assert.Empty(t, second.timers.Timers(), "pending reminders are not re-armed")
}

// =============================================================================
// Collaborators
// =============================================================================

func TestRouter_Research(t *testing.T) {
	h := newHarness(t)
	h.research.SummarizeFunc = func(ctx context.Context, topic string) (string, error) {
		return "Black holes are regions of spacetime.", nil
	}
	h.state.Set(core.ModeStrict)

	resp := h.handle(t, "research black holes")

	assert.Equal(t, IntentResearch, resp.Intent)
	assert.Equal(t, []string{"black holes"}, h.research.Topics())
	assert.Equal(t, strings.ToUpper("Here's a quick summary of 'black holes':\nBlack holes are regions of spacetime.\n💡 Suggested next steps: check latest news or reports."), resp.Text)
	assert.Equal(t, []string{"Research performed: black holes"}, h.entries(t))
}

func TestRouter_ResearchFailureStillAnswers(t *testing.T) {
	h := newHarness(t)
	h.research.SummarizeFunc = func(ctx context.Context, topic string) (string, error) {
		return "", core.ErrResearchFailed
	}

	resp := h.handle(t, "research quasars")

	assert.Equal(t, core.ResponseText, resp.Kind)
	assert.Contains(t, resp.Text, "Here's a quick summary of 'quasars':\n💡")
	assert.Len(t, h.entries(t), 1)
}

func TestRouter_ResearchWithoutTopic(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "research")

	assert.Contains(t, resp.Text, "Tell me a topic")
	assert.Empty(t, h.research.Topics())
	assert.Empty(t, h.entries(t))
}

func TestRouter_FinanceSynonym(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "should i invest")

	assert.Equal(t, IntentFinance, resp.Intent)
}

func TestRouter_Content(t *testing.T) {
	h := newHarness(t)
	h.state.Set(core.ModeBriefing)

	resp := h.handle(t, "how do i monetize")

	assert.Equal(t, IntentContent, resp.Intent)
	assert.True(t, strings.HasPrefix(resp.Text, "Executive briefing: 📌 Content Plan:\n1. Post"))
}

func TestRouter_EmailInfo(t *testing.T) {
	tests := []struct {
		name string
		req  core.Request
	}{
		{"no details", testutil.NewRequest("email").WithCredentials("a@b.co", "pw").Build()},
		{"no credentials", testutil.NewRequest("email").WithDetails("bob@example.com,Hi,Body").Build()},
		{"half credentials", testutil.NewRequest("email").WithDetails("bob@example.com,Hi,Body").WithCredentials("a@b.co", "").Build()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			resp := h.router.Handle(context.Background(), tt.req)

			assert.Equal(t, IntentEmail, resp.Intent)
			assert.Contains(t, resp.Text, EmailInfo)
			assert.Empty(t, h.mail.Sent())
			assert.Empty(t, h.entries(t))
		})
	}
}

func TestRouter_EmailSend(t *testing.T) {
	h := newHarness(t)
	req := testutil.NewRequest("send an email").
		WithDetails("bob@example.com, Lunch, Noon works, see you").
		WithCredentials("andrew@example.com", "app-pass").
		Build()

	resp := h.router.Handle(context.Background(), req)

	assert.Contains(t, resp.Text, "Your email to bob@example.com has been sent.")
	sent := h.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, testutil.SentMail{
		To:          "bob@example.com",
		Subject:     "Lunch",
		Body:        "Noon works, see you",
		Credentials: core.Credentials{Username: "andrew@example.com", Password: "app-pass"},
	}, sent[0])

	entries := h.entries(t)
	assert.Equal(t, []string{"Email sent"}, entries)
	assert.NotContains(t, strings.Join(entries, " "), "app-pass")
}

func TestRouter_EmailFailure(t *testing.T) {
	h := newHarness(t)
	h.mail.SendMailFunc = func(ctx context.Context, to, subject, body string, creds core.Credentials) error {
		return errors.New("535 authentication failed")
	}
	req := testutil.NewRequest("email").WithDetails("bob@example.com,Hi,Body").WithCredentials("a@b.co", "bad").Build()

	resp := h.router.Handle(context.Background(), req)

	assert.Contains(t, resp.Text, "Sorry, I couldn't send the email.")
	assert.Equal(t, []string{"Email failed"}, h.entries(t))
}

func TestRouter_EmailBadDetails(t *testing.T) {
	h := newHarness(t)
	req := testutil.NewRequest("email").WithDetails("bob@example.com only").WithCredentials("a@b.co", "pw").Build()

	resp := h.router.Handle(context.Background(), req)

	assert.Contains(t, resp.Text, "Format error for email. Use: to,subject,body")
	assert.Empty(t, h.mail.Sent())
}

func TestRouter_EmailWithMailAccount(t *testing.T) {
	h := newHarness(t)
	h.router.mailAccount = true

	resp := h.router.Handle(context.Background(), testutil.NewRequest("email").WithDetails("bob@example.com,Hi,Body").Build())

	assert.Contains(t, resp.Text, "has been sent")
	assert.Len(t, h.mail.Sent(), 1)
}

// =============================================================================
// Fallback
// =============================================================================

func TestRouter_Fallback(t *testing.T) {
	h := newHarness(t)

	resp := h.handle(t, "Sing me a lullaby")

	assert.Equal(t, IntentFallback, resp.Intent)
	assert.Equal(t, core.ResponseText, resp.Kind)
	assert.Contains(t, resp.Text, `"sing me a lullaby"`)
	assert.True(t, strings.HasPrefix(resp.Text, "Strategic view: "))
	assert.Empty(t, h.entries(t))
}

func TestRouter_Stats(t *testing.T) {
	h := newHarness(t)

	h.handle(t, "call mom")
	h.handle(t, "call dad")
	h.handle(t, "hello")

	assert.Equal(t, map[string]int{IntentCall: 2, IntentFallback: 1}, h.router.Stats())
}
