// Package core defines the fundamental types and errors for Kai.
package core

import "errors"

// Core errors that can occur across the system
var (
	// Storage errors
	ErrDatabaseNotFound = errors.New("database not found")
	ErrMigrationFailed  = errors.New("migration failed")
	ErrRecordNotFound   = errors.New("record not found")
	ErrCorruptStore     = errors.New("store file is corrupt")

	// Task errors
	ErrInvalidTaskFormat = errors.New("invalid task format")
	ErrInvalidDelay      = errors.New("delay must be a non-negative number")
	ErrSchedulerStopped  = errors.New("scheduler is stopped")

	// Collaborator errors
	ErrResearchFailed    = errors.New("research failed")
	ErrMailNotConfigured = errors.New("mail sender not configured")
	ErrMailFailed        = errors.New("mail delivery failed")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)

// FormatError is returned when user-supplied arguments cannot be parsed.
// Hint is safe to show to the user.
type FormatError struct {
	Hint string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return "format error: " + e.Hint
	}
	return "format error: " + e.Err.Error()
}

func (e *FormatError) Unwrap() error { return e.Err }
