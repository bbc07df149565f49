package workspace

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stratagem-ai/internal/model"
)

const DefaultIdleTTL = 2 * time.Hour

// Registry maps browser session ids to their in-memory Session. Nothing
// outlives the process.
type Registry struct {
	welcome string
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(welcome string, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		welcome:  welcome,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a fresh conversation seeded with the welcome message.
func (r *Registry) Create() *Session {
	var seed []model.Message
	if r.welcome != "" {
		seed = append(seed, model.NewMessage(model.RoleAssistant, r.welcome, nil))
	}
	sess := newSession(uuid.NewString(), seed, r.now())

	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()
	return sess
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		sess.touch(r.now())
	}
	return sess, ok
}

// Resolve returns the session for id, or a new one when id is unknown.
// Client-supplied ids are never adopted.
func (r *Registry) Resolve(id string) *Session {
	if id != "" {
		if sess, ok := r.Get(id); ok {
			return sess
		}
	}
	return r.Create()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle longer than the TTL and reports how many went.
func (r *Registry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, sess := range r.sessions {
		if sess.idleSince(now) > r.idleTTL {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Printf("swept %d idle sessions", n)
			}
		}
	}
}
