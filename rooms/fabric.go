// Package rooms implements the broadcast fabric: named rooms holding the
// connections currently joined, with room-wide fan-out and block-aware
// exclusion fan-out.
package rooms

import (
	"log"
	"sync"

	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/metrics"
)

// ConnSource resolves the live connections of a login so that logical
// channel membership can be mirrored across all of a user's devices.
// The presence registry implements it.
type ConnSource interface {
	ConnectionsOf(login string) []domain.Connection
}

// Fabric maps room ids to joined connections. A connection may belong to
// any number of rooms; membership mutations and broadcasts to the same
// room never observe each other partially.
type Fabric struct {
	source ConnSource
	mu     sync.RWMutex
	rooms  map[string]map[string]domain.Connection // room -> conn id -> conn
}

func NewFabric(source ConnSource) *Fabric {
	return &Fabric{
		source: source,
		rooms:  make(map[string]map[string]domain.Connection),
	}
}

// Join adds every live connection of login to the room. Visible on the
// next broadcast only; there is no retroactive delivery.
func (f *Fabric) Join(login, room string) {
	for _, conn := range f.source.ConnectionsOf(login) {
		f.JoinConn(conn, room)
	}
}

// Leave removes every live connection of login from the room.
func (f *Fabric) Leave(login, room string) {
	for _, conn := range f.source.ConnectionsOf(login) {
		f.LeaveConn(conn, room)
	}
}

// JoinConn adds a single connection to the room. Used for per-match
// rooms, which follow the triggering connection rather than the login.
func (f *Fabric) JoinConn(conn domain.Connection, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rooms[room]
	if !ok {
		r = make(map[string]domain.Connection)
		f.rooms[room] = r
	}
	r[conn.ID()] = conn
}

// LeaveConn removes a single connection from the room.
func (f *Fabric) LeaveConn(conn domain.Connection, room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropLocked(conn, room)
}

// LeaveAll removes the connection from every room it joined. Called on
// disconnect before the teardown is acknowledged.
func (f *Fabric) LeaveAll(conn domain.Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for room := range f.rooms {
		f.dropLocked(conn, room)
	}
}

func (f *Fabric) dropLocked(conn domain.Connection, room string) {
	r, ok := f.rooms[room]
	if !ok {
		return
	}
	delete(r, conn.ID())
	if len(r) == 0 {
		delete(f.rooms, room)
	}
}

// Broadcast delivers the event to every connection currently joined to
// the room, exactly once each. The membership snapshot is taken under
// the lock; sends happen outside it so slow sockets cannot stall
// membership mutations.
func (f *Fabric) Broadcast(room, event string, data any) {
	f.deliver(f.snapshot(room, nil), event, data)
}

// BroadcastExcluding is Broadcast minus the connections of any login in
// excluded. The exclusion is a pure set difference computed at call
// time: no shared membership state is touched, so concurrent broadcasts
// to the same room with different exclusion sets never interfere.
func (f *Fabric) BroadcastExcluding(room, event string, data any, excluded map[string]struct{}) {
	f.deliver(f.snapshot(room, excluded), event, data)
}

// Members returns a snapshot of the connections joined to the room.
func (f *Fabric) Members(room string) []domain.Connection {
	return f.snapshot(room, nil)
}

func (f *Fabric) snapshot(room string, excluded map[string]struct{}) []domain.Connection {
	f.mu.RLock()
	defer f.mu.RUnlock()

	r, ok := f.rooms[room]
	if !ok {
		return nil
	}
	targets := make([]domain.Connection, 0, len(r))
	for _, conn := range r {
		if _, skip := excluded[conn.Login()]; skip {
			metrics.BroadcastSuppressed.Inc()
			continue
		}
		targets = append(targets, conn)
	}
	return targets
}

func (f *Fabric) deliver(targets []domain.Connection, event string, data any) {
	for _, conn := range targets {
		if err := conn.Send(event, data); err != nil {
			log.Printf("Broadcast to %s failed: %v", conn.ID(), err)
			continue
		}
		metrics.BroadcastDeliveries.Inc()
	}
}
