package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/kaiassist/kai/internal/core"
)

// RandomID generates a random ID for testing.
func RandomID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// FixedTime is the clock used by fixtures
var FixedTime = time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)

// DefaultTaskFixture returns a default task fixture.
func DefaultTaskFixture() core.Task {
	return core.Task{
		ID:       core.TaskID("task-" + RandomID()),
		Name:     "stretch",
		Delay:    10,
		Priority: core.PriorityMedium,
		Created:  FixedTime,
	}
}

// TaskFixtureBuilder builds task fixtures with a fluent interface.
type TaskFixtureBuilder struct {
	fixture core.Task
}

// NewTaskBuilder creates a new task fixture builder.
func NewTaskBuilder() *TaskFixtureBuilder {
	return &TaskFixtureBuilder{fixture: DefaultTaskFixture()}
}

// WithID sets the id field.
func (b *TaskFixtureBuilder) WithID(id string) *TaskFixtureBuilder {
	b.fixture.ID = core.TaskID(id)
	return b
}

// WithName sets the name field.
func (b *TaskFixtureBuilder) WithName(name string) *TaskFixtureBuilder {
	b.fixture.Name = name
	return b
}

// WithDelay sets the delay field.
func (b *TaskFixtureBuilder) WithDelay(delay float64) *TaskFixtureBuilder {
	b.fixture.Delay = delay
	return b
}

// WithPriority sets the priority field.
func (b *TaskFixtureBuilder) WithPriority(p core.Priority) *TaskFixtureBuilder {
	b.fixture.Priority = p
	return b
}

// CreatedAt sets the created field.
func (b *TaskFixtureBuilder) CreatedAt(t time.Time) *TaskFixtureBuilder {
	b.fixture.Created = t
	return b
}

// Build returns the built fixture.
func (b *TaskFixtureBuilder) Build() core.Task {
	return b.fixture
}

// RequestFixtureBuilder builds router requests.
type RequestFixtureBuilder struct {
	fixture core.Request
}

// NewRequest creates a request builder for a command.
func NewRequest(command string) *RequestFixtureBuilder {
	return &RequestFixtureBuilder{fixture: core.Request{Command: command}}
}

// WithDetails sets the details field.
func (b *RequestFixtureBuilder) WithDetails(details string) *RequestFixtureBuilder {
	b.fixture.Details = details
	return b
}

// WithMode sets a per-request mode override.
func (b *RequestFixtureBuilder) WithMode(mode core.Mode) *RequestFixtureBuilder {
	b.fixture.Mode = mode
	return b
}

// WithCredentials sets mail credentials.
func (b *RequestFixtureBuilder) WithCredentials(user, pass string) *RequestFixtureBuilder {
	b.fixture.Credentials = core.Credentials{Username: user, Password: pass}
	return b
}

// Build returns the built request.
func (b *RequestFixtureBuilder) Build() core.Request {
	return b.fixture
}
