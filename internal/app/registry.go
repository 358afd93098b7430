package app

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownGame reports a game id with no live session.
var ErrUnknownGame = errors.New("unknown game id")

// Registry is the process-wide table of live sessions, keyed by game id.
// Transports receive a Registry handle at startup; there is no ambient
// global session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Put installs (or replaces) the session for a game id. Replacing discards
// the previous board and scores, which is how a new game starts.
func (r *Registry) Put(id string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

// Get resolves a game id; an empty id means the default game.
func (r *Registry) Get(id string) (*Session, error) {
	if id == "" {
		id = DefaultGameID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("game %q: %w", id, ErrUnknownGame)
	}
	return s, nil
}

// Remove drops a session from the table.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// IDs lists live game ids in stable order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
