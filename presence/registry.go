// Package presence tracks which logins are connected and with how many
// devices, and fans out status transitions to every peer.
package presence

import (
	"sync"

	"github.com/paddlearena/realtime/domain"
)

// Status is the single derived status of a login.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusInGame  Status = "ingame"
)

func (s Status) event() string {
	switch s {
	case StatusOnline:
		return domain.EventOnline
	case StatusInGame:
		return domain.EventInGame
	default:
		return domain.EventOffline
	}
}

// Registry owns the login -> connections mapping. A login appears in the
// registry iff it has at least one live connection; connections keep
// insertion order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string][]domain.Connection
	status  map[string]Status
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string][]domain.Connection),
		status:  make(map[string]Status),
	}
}

// Attach registers the connection under its login. The first connection
// of a login marks it online and announces the transition to all peers.
// Attaching the same connection twice is a no-op.
func (r *Registry) Attach(conn domain.Connection) {
	login := conn.Login()

	r.mu.Lock()
	conns := r.entries[login]
	for _, c := range conns {
		if c.ID() == conn.ID() {
			r.mu.Unlock()
			return
		}
	}
	first := len(conns) == 0
	r.entries[login] = append(conns, conn)
	if first {
		r.status[login] = StatusOnline
	}
	r.mu.Unlock()

	if first {
		r.announce(domain.EventOnline, login)
	}
}

// Detach removes the connection from its login's list. When the list
// empties the login goes offline, the transition is announced and the
// entry is removed. Detaching an unknown connection is a no-op.
func (r *Registry) Detach(conn domain.Connection) {
	login := conn.Login()

	r.mu.Lock()
	conns, ok := r.entries[login]
	if !ok {
		r.mu.Unlock()
		return
	}
	kept := conns[:0]
	for _, c := range conns {
		if c.ID() != conn.ID() {
			kept = append(kept, c)
		}
	}
	last := len(kept) == 0
	if last {
		delete(r.entries, login)
		delete(r.status, login)
	} else {
		r.entries[login] = kept
	}
	r.mu.Unlock()

	if last {
		r.announce(domain.EventOffline, login)
	}
}

// IsOnline reports whether login has at least one live connection.
func (r *Registry) IsOnline(login string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[login]) > 0
}

// ConnectionsOf returns the live connections of login in attach order.
func (r *Registry) ConnectionsOf(login string) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.entries[login]
	out := make([]domain.Connection, len(conns))
	copy(out, conns)
	return out
}

// Status returns the login's derived status.
func (r *Registry) Status(login string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.status[login]; ok {
		return s
	}
	return StatusOffline
}

// SetStatus records a status transition (e.g. entering or leaving a
// match) and announces it to all peers. Transitions for offline logins
// are dropped.
func (r *Registry) SetStatus(login string, status Status) {
	r.mu.Lock()
	if _, ok := r.entries[login]; !ok {
		r.mu.Unlock()
		return
	}
	if r.status[login] == status {
		r.mu.Unlock()
		return
	}
	r.status[login] = status
	r.mu.Unlock()

	r.announce(status.event(), login)
}

// CloseAll closes every live connection. Used for graceful shutdown.
func (r *Registry) CloseAll() {
	for _, conn := range r.allConnections() {
		conn.Close()
	}
}

func (r *Registry) announce(event, login string) {
	for _, conn := range r.allConnections() {
		conn.Send(event, login)
	}
}

func (r *Registry) allConnections() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Connection
	for _, conns := range r.entries {
		out = append(out, conns...)
	}
	return out
}
