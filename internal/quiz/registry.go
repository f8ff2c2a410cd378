package quiz

import (
	"errors"
	"sync"
)

// ErrGameInProgress is returned when a room already has a live session.
var ErrGameInProgress = errors.New("a game is already in progress for this room")

// Registry is the process-wide table of live sessions, keyed by room id. It is
// the only global mutable state in the engine; a room has at most one session
// at a time.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
	}
}

// Create installs the session for its room. It fails with ErrGameInProgress if
// the room already has one, which is what serializes concurrent start_game
// commands for the same room.
func (r *Registry) Create(sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.roomID]; exists {
		return ErrGameInProgress
	}
	r.sessions[sess.roomID] = sess
	return nil
}

// Get returns the live session for a room, if any.
func (r *Registry) Get(roomID int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[roomID]
	return sess, ok
}

// Remove deletes the session for a room, returning the room to idle.
func (r *Registry) Remove(roomID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, roomID)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
