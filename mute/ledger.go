// Package mute keeps time-bounded channel mutes: one expiry instant per
// (login, channel) pair, evaluated lazily so expired entries simply stop
// mattering without a background sweep.
package mute

import (
	"context"
	"sync"
	"time"

	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/store"
)

// Tier durations. Exact values, not approximations.
var tierDurations = map[int]time.Duration{
	1: 60 * time.Second,
	2: 3600 * time.Second,
	3: 86400 * time.Second,
}

type key struct {
	login   string
	channel int64
}

// Ledger gates chat messages on active mutes and enforces the admin and
// owner rules for muting.
type Ledger struct {
	dir store.Directory

	mu      sync.Mutex
	entries map[key]time.Time

	now func() time.Time
}

func NewLedger(dir store.Directory) *Ledger {
	return &Ledger{
		dir:     dir,
		entries: make(map[key]time.Time),
		now:     time.Now,
	}
}

// Mute mutes target in the channel for the tier's duration.
func (l *Ledger) Mute(ctx context.Context, actor, target string, channelID int64, tier int) error {
	ch, err := l.dir.Channel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := checkModeration(ch, actor, target); err != nil {
		return err
	}
	if target == actor {
		return domain.Errorf(domain.InvalidArgument, "cannot mute self")
	}
	duration, ok := tierDurations[tier]
	if !ok {
		return domain.Errorf(domain.InvalidArgument, "invalid mute tier %d", tier)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{login: target, channel: channelID}
	now := l.now()
	if expiry, exists := l.entries[k]; exists && expiry.After(now) {
		return domain.Errorf(domain.InvalidArgument, "user is already muted")
	}
	l.entries[k] = now.Add(duration)
	return nil
}

// Unmute clears an active mute of target in the channel.
func (l *Ledger) Unmute(ctx context.Context, actor, target string, channelID int64) error {
	ch, err := l.dir.Channel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := checkModeration(ch, actor, target); err != nil {
		return err
	}
	if target == actor {
		return domain.Errorf(domain.InvalidArgument, "cannot unmute self")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := key{login: target, channel: channelID}
	expiry, exists := l.entries[k]
	if !exists || !expiry.After(l.now()) {
		return domain.Errorf(domain.InvalidState, "user is not muted")
	}
	delete(l.entries, k)
	return nil
}

// IsMuted reports whether login has an active mute in the channel.
func (l *Ledger) IsMuted(login string, channelID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, exists := l.entries[key{login: login, channel: channelID}]
	return exists && expiry.After(l.now())
}

// checkModeration enforces the shared rules of mute and unmute: no
// moderation in DMs, the target must belong to the channel, the actor
// must be an admin, and only the owner may moderate other admins.
func checkModeration(ch *store.Channel, actor, target string) error {
	if ch.Kind == store.KindDM {
		return domain.Errorf(domain.InvalidState, "cannot mute/unmute in a direct message")
	}
	if !ch.HasMember(target) {
		return domain.Errorf(domain.PermissionDenied, "%s is not a member of this channel", target)
	}
	if !ch.HasAdmin(actor) {
		return domain.Errorf(domain.PermissionDenied, "only admins may mute or unmute")
	}
	if actor != ch.OwnerLogin && ch.HasAdmin(target) {
		return domain.Errorf(domain.PermissionDenied, "only the owner may mute or unmute admins")
	}
	return nil
}
