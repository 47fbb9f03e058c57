package match

import (
	"sync"

	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/metrics"
)

// Registry holds the two matchmaking pools: open sessions waiting for a
// random opponent and invited sessions waiting for a specific one.
type Registry struct {
	mu        sync.Mutex
	open      map[string]*Session
	openOrder []string // creation order, so random matching is deterministic
	invited   map[string]*Session

	winningScore int
	online       func(login string) bool
}

func NewRegistry(winningScore int, online func(login string) bool) *Registry {
	return &Registry{
		open:         make(map[string]*Session),
		invited:      make(map[string]*Session),
		winningScore: winningScore,
		online:       online,
	}
}

// JoinRandom attaches login to the oldest waiting session of the exact
// mode, or creates a new waiting session when none exists.
func (r *Registry) JoinRandom(login string, mode Mode) (*Session, error) {
	if !validMode(mode) {
		return nil, domain.Errorf(domain.InvalidArgument, "no match for mode %q", mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.openOrder {
		s := r.open[id]
		if s == nil || s.mode != mode || s.State() != StateWaiting {
			continue
		}
		if p1, _ := s.Players(); p1 == login {
			continue
		}
		s.attach(login)
		return s, nil
	}

	s := newSession(login, mode, "", r.winningScore)
	r.open[s.id] = s
	r.openOrder = append(r.openOrder, s.id)
	metrics.ActiveMatches.Inc()
	return s, nil
}

// Invite creates a waiting session reserved for target.
func (r *Registry) Invite(login, target string, mode Mode) (*Session, error) {
	if target == login {
		return nil, domain.Errorf(domain.InvalidArgument, "cannot invite yourself")
	}
	if !validMode(mode) {
		return nil, domain.Errorf(domain.InvalidArgument, "no match for mode %q", mode)
	}
	if !r.online(target) {
		return nil, domain.Errorf(domain.InvalidState, "%s is not online", target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := newSession(login, mode, target, r.winningScore)
	r.invited[s.id] = s
	metrics.ActiveMatches.Inc()
	return s, nil
}

// AcceptInvite attaches login to the invited session it was reserved for.
func (r *Registry) AcceptInvite(login, sessionID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.invited[sessionID]
	if !ok {
		return nil, domain.Errorf(domain.NotFound, "game %s not found", sessionID)
	}
	if s.State() != StateWaiting {
		return nil, domain.Errorf(domain.InvalidState, "game %s already started", sessionID)
	}
	if s.ExpectedPlayer() != login {
		return nil, domain.Errorf(domain.PermissionDenied, "you are not invited to this game")
	}
	s.attach(login)
	return s, nil
}

// Leave handles a player abandoning play: every ready session they
// occupy is force-finished against them (finalized by its driver), and
// every waiting session they created is purged outright.
func (r *Registry) Leave(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pool := range []map[string]*Session{r.open, r.invited} {
		for id, s := range pool {
			switch s.State() {
			case StateReady:
				s.ForceFinish(login)
			case StateWaiting:
				if p1, _ := s.Players(); p1 == login {
					r.removeLocked(id)
				}
			}
		}
	}
}

// Get looks a session up by id in either pool.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.open[sessionID]; ok {
		return s, true
	}
	if s, ok := r.invited[sessionID]; ok {
		return s, true
	}
	return nil, false
}

// Remove drops the session from both pools.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sessionID)
}

func (r *Registry) removeLocked(sessionID string) {
	_, inOpen := r.open[sessionID]
	_, inInvited := r.invited[sessionID]
	if !inOpen && !inInvited {
		return
	}
	delete(r.open, sessionID)
	delete(r.invited, sessionID)
	for i, id := range r.openOrder {
		if id == sessionID {
			r.openOrder = append(r.openOrder[:i], r.openOrder[i+1:]...)
			break
		}
	}
	metrics.ActiveMatches.Dec()
}
