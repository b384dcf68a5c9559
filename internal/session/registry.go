package session

import (
	"sync"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/game"
)

// Registry maps communities to their game. The map lock is only held to
// resolve, insert or remove an entry; each game has its own lock held for the
// whole of an operation, so games of unrelated communities never wait on each other.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.CommunityID]*entry
}

type entry struct {
	mu      sync.Mutex
	session *game.Session
	removed bool
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.CommunityID]*entry),
	}
}

// Exists reports whether community has a game.
func (r *Registry) Exists(community domain.CommunityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[community]
	return ok
}

// Insert adds s under its community.
func (r *Registry) Insert(s *game.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.Community()]; ok {
		return game.ErrSessionExists
	}

	r.sessions[s.Community()] = &entry{session: s}
	return nil
}

// Do runs fn with exclusive access to the game of community.
func (r *Registry) Do(community domain.CommunityID, fn func(s *game.Session) error) error {
	r.mu.RLock()
	e, ok := r.sessions[community]
	r.mu.RUnlock()
	if !ok {
		return game.ErrNoSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The entry may have been deleted while we were waiting for it.
	if e.removed {
		return game.ErrNoSession
	}

	return fn(e.session)
}

// Delete removes the game of community if guard accepts it. guard runs with
// exclusive access to the game.
func (r *Registry) Delete(community domain.CommunityID, guard func(s *game.Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[community]
	if !ok {
		return game.ErrNoSession
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := guard(e.session); err != nil {
		return err
	}

	e.removed = true
	delete(r.sessions, community)
	return nil
}

// Len is the number of games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
