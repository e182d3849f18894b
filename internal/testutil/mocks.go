package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/scheduler"
)

// MockResearcher implements a mock research client for testing.
type MockResearcher struct {
	SummarizeFunc func(ctx context.Context, topic string) (string, error)

	mu     sync.Mutex
	topics []string
}

// Summarize calls the mock function if set.
func (m *MockResearcher) Summarize(ctx context.Context, topic string) (string, error) {
	m.mu.Lock()
	m.topics = append(m.topics, topic)
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, topic)
	}
	return "", nil
}

// Topics returns the topics requested so far.
func (m *MockResearcher) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.topics...)
}

// SentMail records one SendMail call.
type SentMail struct {
	To          string
	Subject     string
	Body        string
	Credentials core.Credentials
}

// MockMailer implements a mock mail sender for testing.
type MockMailer struct {
	SendMailFunc func(ctx context.Context, to, subject, body string, creds core.Credentials) error

	mu   sync.Mutex
	sent []SentMail
}

// SendMail records the call and invokes the mock function if set.
func (m *MockMailer) SendMail(ctx context.Context, to, subject, body string, creds core.Credentials) error {
	m.mu.Lock()
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: body, Credentials: creds})
	m.mu.Unlock()

	if m.SendMailFunc != nil {
		return m.SendMailFunc(ctx, to, subject, body, creds)
	}
	return nil
}

// Sent returns the recorded calls.
func (m *MockMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// RegisteredTimer records one After call.
type RegisteredTimer struct {
	ID      string
	Name    string
	Delay   time.Duration
	Handler scheduler.Handler
}

// MockTimers implements the task service's timer registry without a loop.
// Tests fire handlers by hand.
type MockTimers struct {
	AfterFunc func(id, name string, delay time.Duration, handler scheduler.Handler) error

	mu     sync.Mutex
	timers []RegisteredTimer
}

// After records the timer and invokes the mock function if set.
func (m *MockTimers) After(id, name string, delay time.Duration, handler scheduler.Handler) error {
	m.mu.Lock()
	m.timers = append(m.timers, RegisteredTimer{ID: id, Name: name, Delay: delay, Handler: handler})
	m.mu.Unlock()

	if m.AfterFunc != nil {
		return m.AfterFunc(id, name, delay, handler)
	}
	return nil
}

// Timers returns the registered timers.
func (m *MockTimers) Timers() []RegisteredTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RegisteredTimer(nil), m.timers...)
}

// FixedRand always returns the same index, clamped to the pool size.
type FixedRand int

// Intn implements the personality engine's randomness source.
func (r FixedRand) Intn(n int) int {
	if int(r) >= n {
		return n - 1
	}
	return int(r)
}
