package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddlearena/realtime/domain"
)

func allOnline(string) bool  { return true }
func allOffline(string) bool { return false }

func TestJoinRandomPairsTwoPlayers(t *testing.T) {
	r := NewRegistry(5, allOnline)

	first, err := r.JoinRandom("alice", ModeMedium)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, first.State())

	second, err := r.JoinRandom("bob", ModeMedium)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID(), "second player joins the waiting session")
	assert.Equal(t, StateReady, second.State())

	p1, p2 := second.Players()
	assert.Equal(t, "alice", p1)
	assert.Equal(t, "bob", p2)

	snap := second.Snapshot()
	assert.Equal(t, Vec{X: 0.5, Y: 0.5}, snap.BallPosition)
	require.NotNil(t, snap.Player2)
	assert.Equal(t, player2X, snap.Player2.Position.X)
}

func TestJoinRandomMatchesModeExactly(t *testing.T) {
	r := NewRegistry(5, allOnline)

	easy, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)

	hard, err := r.JoinRandom("bob", ModeHard)
	require.NoError(t, err)
	assert.NotEqual(t, easy.ID(), hard.ID())
	assert.Equal(t, StateWaiting, hard.State())
}

func TestJoinRandomPrefersOldestWaiting(t *testing.T) {
	r := NewRegistry(5, allOnline)

	oldest, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)
	_, err = r.JoinRandom("bob", ModeEasy)
	require.NoError(t, err) // pairs with oldest

	newer, err := r.JoinRandom("carol", ModeEasy)
	require.NoError(t, err)
	assert.NotEqual(t, oldest.ID(), newer.ID())

	paired, err := r.JoinRandom("dave", ModeEasy)
	require.NoError(t, err)
	assert.Equal(t, newer.ID(), paired.ID())
}

func TestJoinRandomNeverSelfPairs(t *testing.T) {
	r := NewRegistry(5, allOnline)

	first, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)

	again, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), again.ID())
	assert.Equal(t, StateWaiting, first.State())
}

func TestJoinRandomInvalidMode(t *testing.T) {
	r := NewRegistry(5, allOnline)
	_, err := r.JoinRandom("alice", Mode("nightmare"))
	require.Error(t, err)
	assert.Equal(t, domain.InvalidArgument, domain.CodeOf(err))
}

func TestInviteFlow(t *testing.T) {
	r := NewRegistry(5, allOnline)

	s, err := r.Invite("alice", "bob", ModeHard)
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, s.State())
	assert.Equal(t, "bob", s.ExpectedPlayer())

	// The invited session is not visible to random matchmaking.
	other, err := r.JoinRandom("carol", ModeHard)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID(), other.ID())

	accepted, err := r.AcceptInvite("bob", s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), accepted.ID())
	assert.Equal(t, StateReady, accepted.State())
}

func TestInviteValidation(t *testing.T) {
	r := NewRegistry(5, allOffline)

	_, err := r.Invite("alice", "alice", ModeEasy)
	assert.Equal(t, domain.InvalidArgument, domain.CodeOf(err))

	_, err = r.Invite("alice", "bob", Mode("bogus"))
	assert.Equal(t, domain.InvalidArgument, domain.CodeOf(err))

	_, err = r.Invite("alice", "bob", ModeEasy)
	assert.Equal(t, domain.InvalidState, domain.CodeOf(err), "offline target")
}

func TestAcceptInviteValidation(t *testing.T) {
	r := NewRegistry(5, allOnline)

	_, err := r.AcceptInvite("bob", "missing")
	assert.Equal(t, domain.NotFound, domain.CodeOf(err))

	s, err := r.Invite("alice", "bob", ModeEasy)
	require.NoError(t, err)

	_, err = r.AcceptInvite("mallory", s.ID())
	assert.Equal(t, domain.PermissionDenied, domain.CodeOf(err))

	_, err = r.AcceptInvite("bob", s.ID())
	require.NoError(t, err)

	_, err = r.AcceptInvite("bob", s.ID())
	assert.Equal(t, domain.InvalidState, domain.CodeOf(err), "already started")
}

func TestLeavePurgesWaitingSessions(t *testing.T) {
	r := NewRegistry(5, allOnline)

	open, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)
	invited, err := r.Invite("alice", "bob", ModeEasy)
	require.NoError(t, err)

	r.Leave("alice")

	_, ok := r.Get(open.ID())
	assert.False(t, ok)
	_, ok = r.Get(invited.ID())
	assert.False(t, ok)
}

func TestLeaveForcesReadySessions(t *testing.T) {
	r := NewRegistry(5, allOnline)

	s, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)
	_, err = r.JoinRandom("bob", ModeEasy)
	require.NoError(t, err)

	r.Leave("alice")

	snap := s.Snapshot()
	assert.Equal(t, StateFinished, snap.Status)
	assert.Equal(t, 2, snap.Result)
	assert.Zero(t, snap.Player1.Score)
	assert.Equal(t, 5, snap.Player2.Score)
	assert.True(t, s.wasForfeit())

	// Finished sessions stay registered until the driver removes them.
	_, ok := r.Get(s.ID())
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	r := NewRegistry(5, allOnline)

	s, err := r.JoinRandom("alice", ModeEasy)
	require.NoError(t, err)

	r.Remove(s.ID())
	_, ok := r.Get(s.ID())
	assert.False(t, ok)

	// Removing twice is harmless.
	r.Remove(s.ID())
}
