package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/paddlearena/realtime/chat"
	"github.com/paddlearena/realtime/config"
	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/match"
	"github.com/paddlearena/realtime/metrics"
	"github.com/paddlearena/realtime/mute"
	"github.com/paddlearena/realtime/presence"
	"github.com/paddlearena/realtime/rooms"
	"github.com/paddlearena/realtime/session"
	"github.com/paddlearena/realtime/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler accepts websocket connections and routes their events.
type Handler struct {
	presence  *presence.Registry
	fabric    *rooms.Fabric
	mutes     *mute.Ledger
	matches   *match.Registry
	engine    *match.Engine
	gate      *chat.Gate
	dir       store.Directory
	sessions  session.Store
	validator *JWTValidator
	cfg       *config.AppConfig
	serverID  string
}

func NewHandler(
	pres *presence.Registry,
	fabric *rooms.Fabric,
	mutes *mute.Ledger,
	matches *match.Registry,
	engine *match.Engine,
	gate *chat.Gate,
	dir store.Directory,
	sessions session.Store,
	validator *JWTValidator,
	cfg *config.AppConfig,
	serverID string,
) *Handler {
	return &Handler{
		presence:  pres,
		fabric:    fabric,
		mutes:     mutes,
		matches:   matches,
		engine:    engine,
		gate:      gate,
		dir:       dir,
		sessions:  sessions,
		validator: validator,
		cfg:       cfg,
		serverID:  serverID,
	}
}

// HandleWebSocket authenticates and upgrades an incoming connection,
// attaches it to the registries and runs its read loop until disconnect.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get(h.cfg.Auth.TokenQueryParam)
	if tokenString == "" {
		metrics.AuthFailures.WithLabelValues("missing_token").Inc()
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}
	claims, err := h.validator.ValidateToken(r.Context(), tokenString)
	if err != nil {
		log.Printf("Auth Error: Invalid token from %s. Reason: %v", r.RemoteAddr, err)
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
		return
	}
	login := claims.Subject
	metrics.AuthSuccess.Inc()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	conn.SetReadLimit(int64(h.cfg.WebSocket.MessageSizeLimit))

	cs := NewClientSession(uuid.New().String(), login, conn, &h.cfg.WebSocket)
	cs.StartTimers()
	conn.SetPongHandler(cs.GetPongHandler())

	h.attach(r.Context(), cs)
	defer h.teardown(cs)

	if err := cs.Send(domain.EventConnected, map[string]string{"clientId": cs.ID()}); err != nil {
		log.Printf("Failed to send client ID: %v", err)
		return // defer handles cleanup
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				log.Printf("Read error from client %s: %v", cs.ID(), err)
			}
			cs.CloseWithReason(websocket.CloseNormalClosure, "Client disconnected")
			return
		}
		metrics.MessagesReceived.Inc()
		cs.UpdateActivity()
		h.refreshSession(r.Context(), cs.ID())

		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			h.reportError(cs, domain.Errorf(domain.InvalidArgument, "malformed frame"))
			continue
		}
		if err := h.dispatch(r.Context(), cs, env.Event, env.Data); err != nil {
			h.reportError(cs, err)
		}
	}
}

// attach registers the connection everywhere: presence, session record,
// mailbox room and the rooms of every channel the user belongs to.
func (h *Handler) attach(ctx context.Context, cs *ClientSession) {
	h.presence.Attach(cs)
	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()

	if err := h.sessions.Create(ctx, &session.Record{
		ClientID:    cs.ID(),
		Login:       cs.Login(),
		ServerID:    h.serverID,
		ConnectedAt: time.Now(),
	}); err != nil {
		log.Printf("Failed to create session record for %s: %v", cs.ID(), err)
	}

	h.fabric.JoinConn(cs, cs.Login()) // personal mailbox

	channels, err := h.dir.Memberships(ctx, cs.Login())
	if err != nil {
		log.Printf("Failed to restore memberships for %s: %v", cs.Login(), err)
		return
	}
	for _, id := range channels {
		h.fabric.JoinConn(cs, chat.RoomID(id))
	}
}

// teardown runs synchronously on disconnect, before the read loop
// returns: presence detach, forced finish of any match in play, purge of
// waiting sessions, room departure, session record removal.
func (h *Handler) teardown(cs *ClientSession) {
	h.presence.Detach(cs)
	h.matches.Leave(cs.Login())
	h.fabric.LeaveAll(cs)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.sessions.Delete(ctx, cs.ID()); err != nil {
		log.Printf("Failed to delete session record for %s: %v", cs.ID(), err)
	}
	metrics.ActiveConnections.Dec()
	log.Printf("Client %s (%s) disconnected", cs.ID(), cs.Login())
}

func (h *Handler) refreshSession(ctx context.Context, clientID string) {
	if err := h.sessions.RefreshTTL(ctx, clientID); err != nil {
		// Transient store issues must not disconnect the client.
		log.Printf("Failed to refresh session TTL for %s: %v", clientID, err)
	}
}

// reportError sends a recoverable failure to the originating connection
// only; it never terminates the connection.
func (h *Handler) reportError(cs *ClientSession, err error) {
	cs.Send(domain.EventError, map[string]string{
		"code":    string(domain.CodeOf(err)),
		"message": err.Error(),
	})
}

func (h *Handler) dispatch(ctx context.Context, cs *ClientSession, event string, data json.RawMessage) error {
	switch event {
	case domain.ActionSendMessage:
		return h.handleSendMessage(ctx, cs, data)
	case domain.ActionMute:
		return h.handleMute(ctx, cs, data)
	case domain.ActionUnmute:
		return h.handleUnmute(ctx, cs, data)
	case domain.ActionJoinGame:
		return h.handleJoinGame(cs, data)
	case domain.ActionMove:
		return h.handleMove(cs, data)
	case domain.ActionLeaveGame:
		return h.handleLeaveGame(cs)
	default:
		return domain.Errorf(domain.InvalidArgument, "unknown event %q", event)
	}
}

func (h *Handler) handleSendMessage(ctx context.Context, cs *ClientSession, data json.RawMessage) error {
	var p struct {
		ChannelID int64  `json:"channelId"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChannelID == 0 {
		return domain.Errorf(domain.InvalidArgument, "channelId and content are required")
	}
	_, err := h.gate.Send(ctx, cs.Login(), p.ChannelID, p.Content)
	return err
}

func (h *Handler) handleMute(ctx context.Context, cs *ClientSession, data json.RawMessage) error {
	var p struct {
		ChannelID int64  `json:"channelId"`
		Login     string `json:"login"`
		Tier      int    `json:"tier"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Login == "" {
		return domain.Errorf(domain.InvalidArgument, "channelId and login are required")
	}
	return h.mutes.Mute(ctx, cs.Login(), p.Login, p.ChannelID, p.Tier)
}

func (h *Handler) handleUnmute(ctx context.Context, cs *ClientSession, data json.RawMessage) error {
	var p struct {
		ChannelID int64  `json:"channelId"`
		Login     string `json:"login"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Login == "" {
		return domain.Errorf(domain.InvalidArgument, "channelId and login are required")
	}
	return h.mutes.Unmute(ctx, cs.Login(), p.Login, p.ChannelID)
}

func (h *Handler) handleJoinGame(cs *ClientSession, data json.RawMessage) error {
	var p struct {
		GameID         string `json:"gameId"`
		Mode           string `json:"mode"`
		ExpectedPlayer string `json:"expectedPlayer"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Errorf(domain.InvalidArgument, "malformed joinGame payload")
	}
	if p.GameID == "" && p.Mode == "" && p.ExpectedPlayer == "" {
		return domain.Errorf(domain.InvalidArgument, "no match")
	}

	var (
		s   *match.Session
		err error
	)
	switch {
	case p.GameID != "":
		s, err = h.matches.AcceptInvite(cs.Login(), p.GameID)
	case p.ExpectedPlayer != "":
		s, err = h.matches.Invite(cs.Login(), p.ExpectedPlayer, match.Mode(p.Mode))
	default:
		s, err = h.matches.JoinRandom(cs.Login(), match.Mode(p.Mode))
	}
	if err != nil {
		return err
	}

	h.presence.SetStatus(cs.Login(), presence.StatusInGame)
	h.fabric.JoinConn(cs, s.ID())

	switch s.State() {
	case match.StateWaiting:
		h.fabric.Broadcast(s.ID(), domain.EventWaiting, map[string]string{"gameId": s.ID()})
		if target := s.ExpectedPlayer(); target != "" {
			h.fabric.Broadcast(target, domain.EventInvite, map[string]string{
				"gameId":   s.ID(),
				"sender":   cs.Login(),
				"receiver": target,
			})
		}
	case match.StateReady:
		h.fabric.Broadcast(s.ID(), domain.EventReady, s.Snapshot())
		h.engine.Start(s)
	}
	return nil
}

func (h *Handler) handleMove(cs *ClientSession, data json.RawMessage) error {
	var p struct {
		GameID string  `json:"gameId"`
		Y      float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Errorf(domain.InvalidArgument, "malformed move payload")
	}
	// Moves for unknown sessions are dropped without error.
	if s, ok := h.matches.Get(p.GameID); ok {
		s.MovePaddle(cs.Login(), p.Y)
	}
	return nil
}

func (h *Handler) handleLeaveGame(cs *ClientSession) error {
	h.matches.Leave(cs.Login())
	h.presence.SetStatus(cs.Login(), presence.StatusOnline)
	return nil
}
