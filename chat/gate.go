// Package chat gates inbound channel messages on membership, blocks and
// mutes, then persists and fans them out with block-aware exclusion.
package chat

import (
	"context"
	"strconv"

	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/store"
)

// Broadcaster is the slice of the rooms fabric the gate needs: fan-out
// with a pure set-difference exclusion computed at call time.
type Broadcaster interface {
	BroadcastExcluding(room, event string, data any, excluded map[string]struct{})
}

// MuteChecker reports active mutes. The mute ledger implements it.
type MuteChecker interface {
	IsMuted(login string, channelID int64) bool
}

// Publisher relays persisted messages to downstream consumers.
// Optional; nil disables relaying.
type Publisher interface {
	PublishMessage(ctx context.Context, msg *store.Message)
}

// Gate validates, persists and delivers chat messages.
type Gate struct {
	dir       store.Directory
	messages  store.MessageStore
	mutes     MuteChecker
	fabric    Broadcaster
	publisher Publisher
}

func NewGate(dir store.Directory, messages store.MessageStore, mutes MuteChecker, fabric Broadcaster, publisher Publisher) *Gate {
	return &Gate{
		dir:       dir,
		messages:  messages,
		mutes:     mutes,
		fabric:    fabric,
		publisher: publisher,
	}
}

// Received is the payload broadcast for an accepted message.
type Received struct {
	ID          int64  `json:"id"`
	ChannelID   int64  `json:"channelId"`
	SenderLogin string `json:"senderLogin"`
	Content     string `json:"content"`
	SentAt      int64  `json:"sentAt"` // Unix milliseconds
}

// Send accepts a message for the channel: the sender must be a member,
// not muted there, and in a DM neither party may block the other. On
// acceptance the message is persisted and broadcast to the channel's
// room, excluding the connections of every login that blocks or is
// blocked by the sender.
func (g *Gate) Send(ctx context.Context, sender string, channelID int64, content string) (*store.Message, error) {
	if content == "" {
		return nil, domain.Errorf(domain.InvalidArgument, "empty message")
	}

	ch, err := g.dir.Channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !ch.HasMember(sender) {
		return nil, domain.Errorf(domain.PermissionDenied, "not a member of this channel")
	}

	blocked, blockedBy, err := g.dir.Blocks(ctx, sender)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]struct{}, len(blocked)+len(blockedBy))
	for _, b := range blocked {
		excluded[b] = struct{}{}
	}
	for _, b := range blockedBy {
		excluded[b] = struct{}{}
	}

	if ch.Kind == store.KindDM {
		for _, member := range ch.Members {
			if member == sender {
				continue
			}
			if _, isBlocked := excluded[member]; isBlocked {
				return nil, domain.Errorf(domain.PermissionDenied, "blocked in this conversation")
			}
		}
	}

	if g.mutes.IsMuted(sender, channelID) {
		return nil, domain.Errorf(domain.PermissionDenied, "you are muted in this channel")
	}

	msg, err := g.messages.SaveMessage(ctx, channelID, sender, content)
	if err != nil {
		return nil, err
	}

	g.fabric.BroadcastExcluding(RoomID(channelID), domain.EventMessage, Received{
		ID:          msg.ID,
		ChannelID:   msg.ChannelID,
		SenderLogin: msg.SenderLogin,
		Content:     msg.Content,
		SentAt:      msg.SentAt.UnixMilli(),
	}, excluded)

	if g.publisher != nil {
		g.publisher.PublishMessage(ctx, msg)
	}
	return msg, nil
}

// RoomID names the fabric room of a chat channel.
func RoomID(channelID int64) string {
	return "channel:" + strconv.FormatInt(channelID, 10)
}
