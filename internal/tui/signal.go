package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// sessionChangedMsg tells the model to re-read session state.
type sessionChangedMsg struct{}

// signal coalesces change notifications from the session loop into
// bubbletea messages. Session callbacks must never block, so signalling
// only fills a one-slot channel.
type signal struct {
	ch chan struct{}

	mu      sync.Mutex
	failure string
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{}, 1)}
}

func (s *signal) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *signal) fail(msg string) {
	s.mu.Lock()
	s.failure = msg
	s.mu.Unlock()
	s.notify()
}

// takeFailure returns and clears the last connection failure.
func (s *signal) takeFailure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.failure
	s.failure = ""
	return msg
}

func (s *signal) wait() tea.Cmd {
	return func() tea.Msg {
		<-s.ch
		return sessionChangedMsg{}
	}
}
