package workspace

import (
	"sync"
	"time"

	"stratagem-ai/internal/conversation"
	"stratagem-ai/internal/model"
)

type Session struct {
	id string

	mu       sync.Mutex
	state    State
	lastSeen time.Time
	subs     map[chan struct{}]struct{}
}

func newSession(id string, seed []model.Message, now time.Time) *Session {
	return &Session{
		id:       id,
		state:    State{Transcript: conversation.New(seed...)},
		lastSeen: now,
		subs:     make(map[chan struct{}]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs the transitions in order as one atomic step and returns the
// resulting state. Subscribers are woken once per call.
func (s *Session) Apply(ts ...Transition) State {
	s.mu.Lock()
	for _, t := range ts {
		s.state = t(s.state)
	}
	s.state.Version++
	out := s.state
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
	return out
}

// Subscribe returns a channel that receives a tick after every change. Ticks
// coalesce, so readers should take a fresh Snapshot on each one.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) > 0 || s.state.Typing() || s.state.Analyzing() {
		return 0
	}
	return now.Sub(s.lastSeen)
}
