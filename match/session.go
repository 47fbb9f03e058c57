// Package match holds the matchmaking registry and the authoritative
// simulation for two-player paddle matches: one state machine and one
// independent physics timeline per session.
package match

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeEasy   Mode = "easy"
	ModeMedium Mode = "medium"
	ModeHard   Mode = "hard"
)

// speedFor returns the ball's base speed in field units per millisecond
// of elapsed time, or 0 for an unknown mode.
// nowFunc is swapped out by clock-sensitive tests.
var nowFunc = time.Now

func speedFor(mode Mode) float64 {
	switch mode {
	case ModeEasy:
		return 0.001
	case ModeMedium:
		return 0.0013
	case ModeHard:
		return 0.0017
	default:
		return 0
	}
}

func validMode(mode Mode) bool {
	return speedFor(mode) != 0
}

type State string

const (
	StateWaiting  State = "waiting"
	StateReady    State = "ready"
	StateFinished State = "finished"
)

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type player struct {
	login    string
	position Vec
	score    int
}

// Session is one match: two player slots, ball state and a lifecycle of
// waiting -> ready -> finished. All mutable state is guarded by mu; the
// driver goroutine is the only writer once the session is ready, except
// for paddle moves and forced finishes arriving from the gateway.
type Session struct {
	mu sync.Mutex

	id             string
	mode           Mode
	state          State
	player1        *player
	player2        *player
	ballPosition   Vec
	ballDirection  Vec
	ballSpeed      float64
	result         int // 1 = player1 won, 2 = player2 won
	forfeit        bool
	expectedPlayer string
	winningScore   int

	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	done      chan struct{}
	doneOnce  sync.Once
	startOnce sync.Once
}

func newSession(login string, mode Mode, expectedPlayer string, winningScore int) *Session {
	return &Session{
		id:    uuid.New().String(),
		mode:  mode,
		state: StateWaiting,
		player1: &player{
			login:    login,
			position: Vec{X: player1X, Y: 0.5},
		},
		ballPosition:   Vec{X: 0.5, Y: 0.5},
		ballSpeed:      speedFor(mode),
		expectedPlayer: expectedPlayer,
		winningScore:   winningScore,
		createdAt:      nowFunc(),
		done:           make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ExpectedPlayer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expectedPlayer
}

// Players returns the logins occupying the two slots; the second is
// empty while the session is waiting.
func (s *Session) Players() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var second string
	if s.player2 != nil {
		second = s.player2.login
	}
	return s.player1.login, second
}

// attach fills the second player slot and arms the ball.
func (s *Session) attach(login string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.player2 = &player{
		login:    login,
		position: Vec{X: player2X, Y: 0.5},
	}
	s.state = StateReady
	s.startedAt = nowFunc()
	s.resetBall()
}

// MovePaddle updates the vertical position of login's paddle. Moves for
// unknown logins or sessions not in play are silently dropped.
func (s *Session) MovePaddle(login string, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return
	}
	switch {
	case s.player1.login == login:
		s.player1.position.Y = y
	case s.player2 != nil && s.player2.login == login:
		s.player2.position.Y = y
	}
}

// ForceFinish awards the match 5-0 (winningScore-0) against the leaver.
// Only a ready session can be forced; returns whether the state changed.
func (s *Session) ForceFinish(leaver string) bool {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return false
	}
	switch {
	case s.player1.login == leaver:
		s.player1.score = 0
		s.player2.score = s.winningScore
		s.result = 2
	case s.player2.login == leaver:
		s.player2.score = 0
		s.player1.score = s.winningScore
		s.result = 1
	default:
		s.mu.Unlock()
		return false
	}
	s.state = StateFinished
	s.forfeit = true
	s.finishedAt = nowFunc()
	s.mu.Unlock()

	s.signalDone()
	return true
}

func (s *Session) wasForfeit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forfeit
}

// signalDone wakes the driver for finalization. Idempotent: a win
// condition and a forced leave racing on the same tick pick one winner.
func (s *Session) signalDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// resetBall recenters the ball and re-randomizes the horizontal
// direction. Callers hold mu.
func (s *Session) resetBall() {
	s.ballPosition = Vec{X: 0.5, Y: 0.5}
	s.ballDirection = Vec{X: rand.Float64()*2 - 1, Y: 0}
}

// PlayerSnapshot is the wire form of one player slot.
type PlayerSnapshot struct {
	Login    string `json:"id"`
	Position Vec    `json:"position"`
	Score    int    `json:"score"`
}

// Snapshot is the full session state broadcast to the match room on
// every tick and on finish.
type Snapshot struct {
	SessionID      string          `json:"gameId"`
	Mode           Mode            `json:"gameMode"`
	Status         State           `json:"status"`
	BallPosition   Vec             `json:"ballPosition"`
	BallDirection  Vec             `json:"ballDirection"`
	Player1        *PlayerSnapshot `json:"player1"`
	Player2        *PlayerSnapshot `json:"player2,omitempty"`
	Result         int             `json:"result"`
	ExpectedPlayer string          `json:"expectedPlayer,omitempty"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:      s.id,
		Mode:           s.mode,
		Status:         s.state,
		BallPosition:   s.ballPosition,
		BallDirection:  s.ballDirection,
		Result:         s.result,
		ExpectedPlayer: s.expectedPlayer,
		Player1: &PlayerSnapshot{
			Login:    s.player1.login,
			Position: s.player1.position,
			Score:    s.player1.score,
		},
	}
	if s.player2 != nil {
		snap.Player2 = &PlayerSnapshot{
			Login:    s.player2.login,
			Position: s.player2.position,
			Score:    s.player2.score,
		}
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}
