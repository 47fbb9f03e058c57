package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	id     string
	login  string
	mu     sync.Mutex
	events []string
	closed bool
}

func (m *mockConn) ID() string    { return m.id }
func (m *mockConn) Login() string { return m.login }

func (m *mockConn) Send(event string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event+":"+data.(string))
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

func TestRegistry_AttachDetachInvariant(t *testing.T) {
	r := NewRegistry()

	c1 := &mockConn{id: "c1", login: "alice"}
	c2 := &mockConn{id: "c2", login: "alice"}

	assert.False(t, r.IsOnline("alice"))

	r.Attach(c1)
	assert.True(t, r.IsOnline("alice"))

	r.Attach(c2)
	assert.True(t, r.IsOnline("alice"))
	assert.Len(t, r.ConnectionsOf("alice"), 2)

	r.Detach(c1)
	assert.True(t, r.IsOnline("alice"), "still one live connection")

	r.Detach(c2)
	assert.False(t, r.IsOnline("alice"), "no live connections left")
	assert.Empty(t, r.ConnectionsOf("alice"))
}

func TestRegistry_AttachIsIdempotentPerConnection(t *testing.T) {
	r := NewRegistry()
	c := &mockConn{id: "c1", login: "alice"}

	r.Attach(c)
	r.Attach(c)

	assert.Len(t, r.ConnectionsOf("alice"), 1)
}

func TestRegistry_DetachUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Detach(&mockConn{id: "ghost", login: "nobody"})
	assert.False(t, r.IsOnline("nobody"))
}

func TestRegistry_StatusTransitionsAnnounced(t *testing.T) {
	r := NewRegistry()

	peer := &mockConn{id: "p", login: "bob"}
	r.Attach(peer)

	alice := &mockConn{id: "a", login: "alice"}
	r.Attach(alice)
	assert.Contains(t, peer.received(), "online:alice")

	// Second device must not re-announce.
	alice2 := &mockConn{id: "a2", login: "alice"}
	r.Attach(alice2)
	count := 0
	for _, e := range peer.received() {
		if e == "online:alice" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	r.SetStatus("alice", StatusInGame)
	assert.Contains(t, peer.received(), "ingame:alice")
	assert.Equal(t, StatusInGame, r.Status("alice"))

	r.SetStatus("alice", StatusOnline)
	assert.Equal(t, StatusOnline, r.Status("alice"))

	r.Detach(alice)
	assert.NotContains(t, peer.received(), "offline:alice")
	r.Detach(alice2)
	assert.Contains(t, peer.received(), "offline:alice")
}

func TestRegistry_SetStatusForOfflineLoginDropped(t *testing.T) {
	r := NewRegistry()
	r.SetStatus("ghost", StatusInGame)
	assert.Equal(t, StatusOffline, r.Status("ghost"))
}

func TestRegistry_ConnectionsKeepAttachOrder(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c1", "c2", "c3"} {
		r.Attach(&mockConn{id: id, login: "alice"})
	}

	conns := r.ConnectionsOf("alice")
	require.Len(t, conns, 3)
	assert.Equal(t, "c1", conns[0].ID())
	assert.Equal(t, "c2", conns[1].ID())
	assert.Equal(t, "c3", conns[2].ID())
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	c1 := &mockConn{id: "c1", login: "alice"}
	c2 := &mockConn{id: "c2", login: "bob"}
	r.Attach(c1)
	r.Attach(c2)

	r.CloseAll()

	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
}
