package stream

import (
	"errors"
	"sync"
)

// ErrActive is returned by Begin when the session already has a
// response in flight. Callers must refuse the new request rather than
// queue it.
var ErrActive = errors.New("stream already active for session")

// Registry enforces at most one active streamed response per session.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Session)}
}

// Begin reserves the session slot and returns a new Session pushing to
// out. It returns ErrActive when a stream is already in flight for the
// session.
func (r *Registry) Begin(sessionID string, out chan<- Event) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[sessionID]; ok {
		return nil, ErrActive
	}
	session := NewSession(sessionID, out)
	r.active[sessionID] = session
	return session, nil
}

// Release frees the session slot. Releasing a session that is not
// active is a no-op.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
}

// ActiveCount returns the number of sessions with a response in flight.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
