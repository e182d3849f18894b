package personality

import (
	"sync"

	"github.com/kaiassist/kai/internal/core"
)

// State holds the process-wide mode
type State struct {
	mu   sync.RWMutex
	mode core.Mode
}

// NewState creates a state starting in initial, or DefaultMode when empty
func NewState(initial core.Mode) *State {
	if initial == "" {
		initial = core.DefaultMode
	}
	return &State{mode: initial}
}

// Mode returns the current mode
func (s *State) Mode() core.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Set replaces the mode and returns the previous one.
// Names outside the known set are stored verbatim.
func (s *State) Set(mode core.Mode) core.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.mode
	s.mode = mode
	return prev
}
