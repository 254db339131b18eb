package session

import (
	"sync"

	"github.com/srg/progressor/internal/protocol"
)

// State holds the single outstanding-command slot of one session.
// The orchestrator is the only writer; the demux only reads it.
type State struct {
	mu          sync.RWMutex
	outstanding protocol.Command
	set         bool
	transitions int
}

// NewState returns an empty session state
func NewState() *State {
	return &State{}
}

// SetOutstanding overwrites the slot. A reply still in flight for the previous
// command will be attributed to cmd; the protocol has no sequence numbers.
func (s *State) SetOutstanding(cmd protocol.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding = cmd
	s.set = true
	s.transitions++
}

// Outstanding peeks at the slot without clearing it
func (s *State) Outstanding() (protocol.Command, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outstanding, s.set
}

// Clear empties the slot
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outstanding = 0
	s.set = false
}

// Transitions is the number of SetOutstanding calls so far
func (s *State) Transitions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transitions
}
