package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is a live protocol session. LastActive is refreshed on every
// message that addresses the session; the reaper evicts sessions whose idle
// time exceeds the configured maximum.
type Session struct {
	ID         string
	CreatedAt  time.Time
	lastActive atomic.Int64 // unix milliseconds
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixMilli())
}

// LastActive returns the time of the most recent activity.
func (s *Session) LastActive() time.Time {
	return time.UnixMilli(s.lastActive.Load())
}

// IdleFor returns how long the session has been idle as of now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActive())
}

// Registry tracks live sessions. It is safe for concurrent use by worker
// goroutines and the reaper.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session with a generated identifier.
func (r *Registry) Create() *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	s.Touch()
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with the given id, if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove evicts the session with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts every session idle for longer than maxIdle and returns the
// number of evictions.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, s := range r.sessions {
		if s.IdleFor(now) > maxIdle {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}
