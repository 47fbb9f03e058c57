package match

import (
	"context"
	"log"
	"time"

	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/metrics"
	"github.com/paddlearena/realtime/presence"
	"github.com/paddlearena/realtime/store"
)

// Broadcaster pushes events to a session's room. The rooms fabric
// implements it.
type Broadcaster interface {
	Broadcast(room, event string, data any)
}

// StatusTracker flips player statuses as they enter and leave play. The
// presence registry implements it.
type StatusTracker interface {
	SetStatus(login string, status presence.Status)
}

// Publisher relays finished-match records to downstream consumers.
// Optional; a nil publisher disables relaying.
type Publisher interface {
	PublishMatchFinished(ctx context.Context, rec store.MatchRecord)
}

// Engine drives ready sessions: one goroutine per session ticking the
// physics with measured wall-clock deltas, broadcasting each state, and
// finalizing exactly once on finish. Timelines of different sessions are
// fully independent.
type Engine struct {
	registry  *Registry
	fabric    Broadcaster
	statuses  StatusTracker
	matches   store.MatchStore
	publisher Publisher
	tick      time.Duration
}

func NewEngine(registry *Registry, fabric Broadcaster, statuses StatusTracker, matches store.MatchStore, publisher Publisher, tick time.Duration) *Engine {
	return &Engine{
		registry:  registry,
		fabric:    fabric,
		statuses:  statuses,
		matches:   matches,
		publisher: publisher,
		tick:      tick,
	}
}

// Start launches the session's driver. Subsequent calls are no-ops, so a
// ready transition observed by two code paths starts a single timeline.
func (e *Engine) Start(s *Session) {
	s.startOnce.Do(func() {
		go e.run(s)
	})
}

func (e *Engine) run(s *Session) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-s.done:
			e.finalize(s)
			return
		case now := <-ticker.C:
			// Elapsed wall time, not the nominal period: ticks behind
			// schedule move the ball further.
			delta := float64(now.Sub(last).Microseconds()) / 1000.0
			last = now

			snap, finished := s.step(delta)
			e.fabric.Broadcast(s.id, domain.EventUpdate, snap)
			if finished {
				s.signalDone()
			}
		}
	}
}

// finalize persists the result, announces it, returns both players to
// online and removes the session. Runs exactly once per session: the
// driver is the only caller and exits right after.
func (e *Engine) finalize(s *Session) {
	snap := s.Snapshot()

	e.fabric.Broadcast(s.id, domain.EventFinished, snap)

	rec := store.MatchRecord{
		SessionID: snap.SessionID,
		Player1:   snap.Player1.Login,
		Score1:    snap.Player1.Score,
	}
	if snap.Player2 != nil {
		rec.Player2 = snap.Player2.Login
		rec.Score2 = snap.Player2.Score
	}
	if snap.StartedAt != nil {
		rec.StartedAt = *snap.StartedAt
	}
	if snap.FinishedAt != nil {
		rec.FinishedAt = *snap.FinishedAt
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.matches.SaveMatch(ctx, rec); err != nil {
		log.Printf("Failed to persist match %s: %v", s.id, err)
	}
	if e.publisher != nil {
		e.publisher.PublishMatchFinished(ctx, rec)
	}

	outcome := "played"
	if s.wasForfeit() {
		outcome = "forfeit"
	}
	metrics.MatchesFinished.WithLabelValues(outcome).Inc()

	e.registry.Remove(s.id)

	e.statuses.SetStatus(rec.Player1, presence.StatusOnline)
	if rec.Player2 != "" {
		e.statuses.SetStatus(rec.Player2, presence.StatusOnline)
	}
}
