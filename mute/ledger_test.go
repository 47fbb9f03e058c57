package mute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddlearena/realtime/domain"
	"github.com/paddlearena/realtime/store"
)

// mockDirectory serves a fixed channel set.
type mockDirectory struct {
	channels map[int64]*store.Channel
}

func (d *mockDirectory) Channel(_ context.Context, id int64) (*store.Channel, error) {
	if ch, ok := d.channels[id]; ok {
		return ch, nil
	}
	return nil, domain.Errorf(domain.NotFound, "channel %d not found", id)
}

func (d *mockDirectory) Memberships(context.Context, string) ([]int64, error) {
	return nil, nil
}

func (d *mockDirectory) Blocks(context.Context, string) ([]string, []string, error) {
	return nil, nil, nil
}

func testLedger(t *testing.T) (*Ledger, *time.Time) {
	t.Helper()
	dir := &mockDirectory{channels: map[int64]*store.Channel{
		1: {
			ID:         1,
			Kind:       store.KindChannel,
			OwnerLogin: "owner",
			Members:    []string{"owner", "admin", "member", "other"},
			Admins:     []string{"owner", "admin"},
		},
		2: {
			ID:      2,
			Kind:    store.KindDM,
			Members: []string{"alice", "bob"},
		},
	}}

	l := NewLedger(dir)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLedger_TierDurations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		tier     int
		duration time.Duration
	}{
		{tier: 1, duration: 60 * time.Second},
		{tier: 2, duration: 3600 * time.Second},
		{tier: 3, duration: 86400 * time.Second},
	}

	for _, tc := range tests {
		l, now := testLedger(t)
		require.NoError(t, l.Mute(ctx, "admin", "member", 1, tc.tier))
		assert.True(t, l.IsMuted("member", 1))

		// One instant before expiry the mute still holds.
		*now = now.Add(tc.duration - time.Nanosecond)
		assert.True(t, l.IsMuted("member", 1), "tier %d", tc.tier)

		// At the exact expiry instant it lapses.
		*now = now.Add(time.Nanosecond)
		assert.False(t, l.IsMuted("member", 1), "tier %d", tc.tier)
	}
}

func TestLedger_MuteValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   string
		target  string
		channel int64
		tier    int
		code    domain.Code
	}{
		{"non-admin actor", "member", "other", 1, 1, domain.PermissionDenied},
		{"admin target, non-owner actor", "admin", "owner", 1, 1, domain.PermissionDenied},
		{"target not a member", "admin", "stranger", 1, 1, domain.PermissionDenied},
		{"self mute", "owner", "owner", 1, 1, domain.InvalidArgument},
		{"bad tier", "admin", "member", 1, 4, domain.InvalidArgument},
		{"zero tier", "admin", "member", 1, 0, domain.InvalidArgument},
		{"dm channel", "alice", "bob", 2, 1, domain.InvalidState},
		{"unknown channel", "admin", "member", 99, 1, domain.NotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := testLedger(t)
			err := l.Mute(ctx, tc.actor, tc.target, tc.channel, tc.tier)
			require.Error(t, err)
			assert.Equal(t, tc.code, domain.CodeOf(err))
			assert.False(t, l.IsMuted(tc.target, tc.channel), "failed mute must not create an entry")
		})
	}
}

func TestLedger_OwnerMayMuteAdmins(t *testing.T) {
	ctx := context.Background()
	l, _ := testLedger(t)

	require.NoError(t, l.Mute(ctx, "owner", "admin", 1, 2))
	assert.True(t, l.IsMuted("admin", 1))
}

func TestLedger_AlreadyMuted(t *testing.T) {
	ctx := context.Background()
	l, now := testLedger(t)

	require.NoError(t, l.Mute(ctx, "admin", "member", 1, 1))

	err := l.Mute(ctx, "admin", "member", 1, 2)
	require.Error(t, err)
	assert.Equal(t, domain.InvalidArgument, domain.CodeOf(err))

	// Once the first mute lapses, muting again succeeds.
	*now = now.Add(61 * time.Second)
	assert.NoError(t, l.Mute(ctx, "admin", "member", 1, 2))
}

func TestLedger_Unmute(t *testing.T) {
	ctx := context.Background()
	l, now := testLedger(t)

	// Not muted yet.
	err := l.Unmute(ctx, "admin", "member", 1)
	require.Error(t, err)
	assert.Equal(t, domain.InvalidState, domain.CodeOf(err))

	require.NoError(t, l.Mute(ctx, "admin", "member", 1, 3))
	require.NoError(t, l.Unmute(ctx, "admin", "member", 1))
	assert.False(t, l.IsMuted("member", 1))

	// An expired mute counts as not muted.
	require.NoError(t, l.Mute(ctx, "admin", "member", 1, 1))
	*now = now.Add(2 * time.Minute)
	err = l.Unmute(ctx, "admin", "member", 1)
	assert.Equal(t, domain.InvalidState, domain.CodeOf(err))
}

func TestLedger_UnmuteInDM(t *testing.T) {
	l, _ := testLedger(t)
	err := l.Unmute(context.Background(), "alice", "bob", 2)
	require.Error(t, err)
	assert.Equal(t, domain.InvalidState, domain.CodeOf(err))
}
