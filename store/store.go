// Package store defines the persistence contracts the realtime core
// consumes, plus a SQLite-backed reference implementation. The core only
// ever reads directory data and writes finished matches and accepted
// messages; account management lives in a separate service.
package store

import (
	"context"
	"time"
)

type ChannelKind string

const (
	KindDM      ChannelKind = "DM"
	KindChannel ChannelKind = "Channel"
)

// Channel is the directory view of a chat channel: enough to enforce
// membership, admin and mute rules.
type Channel struct {
	ID         int64
	Kind       ChannelKind
	OwnerLogin string
	Members    []string
	Admins     []string
}

func (c *Channel) HasMember(login string) bool {
	for _, m := range c.Members {
		if m == login {
			return true
		}
	}
	return false
}

func (c *Channel) HasAdmin(login string) bool {
	for _, a := range c.Admins {
		if a == login {
			return true
		}
	}
	return false
}

// MatchRecord is the immutable result of a finished match.
type MatchRecord struct {
	SessionID  string
	Player1    string
	Player2    string
	Score1     int
	Score2     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Message is a persisted chat message with its store-assigned identity.
type Message struct {
	ID          int64
	ChannelID   int64
	SenderLogin string
	Content     string
	SentAt      time.Time
}

// Directory resolves users' channel relationships.
type Directory interface {
	// Channel returns the channel with the given id, or a NotFound error.
	Channel(ctx context.Context, id int64) (*Channel, error)
	// Memberships returns the ids of every channel login belongs to,
	// used to restore room joins after reconnect.
	Memberships(ctx context.Context, login string) ([]int64, error)
	// Blocks returns the logins blocked by login and the logins that
	// block login.
	Blocks(ctx context.Context, login string) (blocked, blockedBy []string, err error)
}

// MatchStore persists finished matches and applies the rating update:
// winner gains 3x the score difference, loser drops by the difference,
// floored at zero. Idempotent per session id.
type MatchStore interface {
	SaveMatch(ctx context.Context, rec MatchRecord) error
	Rating(ctx context.Context, login string) (int, error)
}

// MessageStore persists accepted chat messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, channelID int64, sender, content string) (*Message, error)
}

// Store is the full persistence surface consumed by the core.
type Store interface {
	Directory
	MatchStore
	MessageStore
}
