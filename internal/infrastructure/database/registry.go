package database

import "sync"

// sessionRegistry tracks the sessions open during one connected period.
// Disconnect drains it; a fresh registry is installed for the next period.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[uint64]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[uint64]*Session)}
}

func (r *sessionRegistry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
}

// remove deregisters a session. Removing an unknown id is a no-op.
func (r *sessionRegistry) remove(id uint64) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *sessionRegistry) contains(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// drain empties the registry and returns whatever was still open.
func (r *sessionRegistry) drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, s)
		delete(r.sessions, id)
	}
	return out
}
