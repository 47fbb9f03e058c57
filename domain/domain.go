// Package domain holds the vocabulary shared by the gateway, the
// registries and the match engine: the transport-agnostic connection
// handle, the wire envelope and the event names pushed to clients.
package domain

// Connection is a live client socket bound to a verified login for its
// lifetime. A user may own several simultaneous connections.
type Connection interface {
	// ID uniquely identifies this connection (not the user).
	ID() string
	// Login is the verified identity the connection was attached with.
	Login() string
	// Send delivers one event envelope to the client. Delivery order per
	// connection follows call order.
	Send(event string, data any) error
	Close() error
}

// Envelope is the wire frame exchanged with clients in both directions.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Events pushed to clients.
const (
	EventOnline    = "online"
	EventOffline   = "offline"
	EventInGame    = "ingame"
	EventMessage   = "messageReceived"
	EventWaiting   = "waiting"
	EventInvite    = "gameInvite"
	EventReady     = "gameReady"
	EventUpdate    = "gameUpdate"
	EventFinished  = "gameFinished"
	EventError     = "error"
	EventConnected = "connected"
)

// Events accepted from clients.
const (
	ActionSendMessage = "sendMessage"
	ActionMute        = "mute"
	ActionUnmute      = "unmute"
	ActionJoinGame    = "joinGame"
	ActionMove        = "move"
	ActionLeaveGame   = "leaveGame"
)
