// Package gateway is the websocket transport: it authenticates
// handshakes, owns client sessions and dispatches inbound events to the
// presence, chat and match components.
package gateway

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/paddlearena/realtime/config"
	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/metrics"
)

const websocketRetryDelay = 200 * time.Millisecond

// ClientSession represents a connected websocket client bound to one
// verified login. It implements domain.Connection.
type ClientSession struct {
	id            string
	login         string
	conn          *websocket.Conn
	ctx           context.Context
	cfg           *config.WebSocketConfig
	lastActivity  atomic.Int64
	pingTicker    *time.Ticker
	activityTimer *time.Timer
	cancel        context.CancelFunc
	mu            sync.Mutex
}

// NewClientSession creates a new client session.
func NewClientSession(id, login string, conn *websocket.Conn, cfg *config.WebSocketConfig) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())
	cs := &ClientSession{
		id:     id,
		login:  login,
		conn:   conn,
		cfg:    cfg,
		cancel: cancel,
		ctx:    ctx,
	}
	cs.lastActivity.Store(time.Now().Unix())
	return cs
}

func (s *ClientSession) ID() string    { return s.id }
func (s *ClientSession) Login() string { return s.login }

// Send delivers one event envelope to the client.
func (s *ClientSession) Send(event string, data any) error {
	if err := s.safeWriteJSON(domain.Envelope{Event: event, Data: data}); err != nil {
		return err
	}
	metrics.MessagesSent.Inc()
	return nil
}

// safeWriteJSON writes to the websocket with retry capability. Retries
// stop when the session is closed.
func (s *ClientSession) safeWriteJSON(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	operation := func() error {
		return s.conn.WriteJSON(data)
	}

	backoffStrategy := backoff.WithContext(
		backoff.NewConstantBackOff(websocketRetryDelay),
		s.ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Printf("Retrying WebSocket write to %s: %v (next attempt in %s)", s.id, err, d)
	})
}

// UpdateActivity updates the last activity timestamp and resets the
// timeout timer. Called for actual client messages, not pong responses.
func (s *ClientSession) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity.Store(time.Now().Unix())

	if s.activityTimer != nil {
		s.activityTimer.Stop()
		s.activityTimer = time.AfterFunc(
			time.Duration(s.cfg.ActivityTimeout)*time.Second,
			s.onActivityTimeout,
		)
	}
}

// LastActivityTime returns the time of last activity.
func (s *ClientSession) LastActivityTime() time.Time {
	return time.Unix(s.lastActivity.Load(), 0)
}

func (s *ClientSession) StartTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activityTimer = time.AfterFunc(
		time.Duration(s.cfg.ActivityTimeout)*time.Second,
		s.onActivityTimeout,
	)

	s.pingTicker = time.NewTicker(
		time.Duration(s.cfg.PingInterval) * time.Second,
	)
	go s.pingLoop()
}

func (s *ClientSession) pingLoop() {
	defer s.pingTicker.Stop()

	for {
		select {
		case <-s.pingTicker.C:
			if err := s.sendPing(); err != nil {
				log.Printf("Failed to send ping to %s: %v", s.id, err)
				s.CloseWithReason(websocket.CloseInternalServerErr, "Ping failure")
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ClientSession) onActivityTimeout() {
	log.Printf("Connection %s timed out", s.id)
	s.CloseWithReason(websocket.ClosePolicyViolation, "Inactivity timeout")
}

func (s *ClientSession) sendPing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteControl(
		websocket.PingMessage,
		[]byte{},
		time.Now().Add(time.Duration(s.cfg.WriteTimeout)*time.Second),
	)
}

// UpdateLastSeen updates only the timestamp (for pong responses); it
// does not reset the activity timer.
func (s *ClientSession) UpdateLastSeen() {
	s.lastActivity.Store(time.Now().Unix())
}

// GetPongHandler returns a pong handler function based on configuration.
func (s *ClientSession) GetPongHandler() func(string) error {
	return func(msg string) error {
		if s.cfg.KeepAlive {
			s.UpdateActivity()
		} else {
			s.UpdateLastSeen()
		}
		return nil
	}
}

// Close closes the websocket connection.
func (s *ClientSession) Close() error {
	return s.CloseWithReason(websocket.CloseNormalClosure, "Connection closed")
}

// CloseWithReason stops the session's timers, sends a close frame and
// closes the underlying connection.
func (s *ClientSession) CloseWithReason(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pingTicker != nil {
		s.pingTicker.Stop()
	}
	if s.activityTimer != nil {
		s.activityTimer.Stop()
	}

	if s.cancel != nil {
		s.cancel()
	}

	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second
	err := s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeTimeout),
	)
	if err != nil {
		log.Printf("Error sending close message: %v", err)
	}

	return s.conn.Close()
}
