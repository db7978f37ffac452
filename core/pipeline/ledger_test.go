package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVoteAndOverwrite(t *testing.T) {
	track := trackIn(PhaseSecondListen)
	store := newFakeStore(track)
	l := NewLedger(store)
	ctx := context.Background()

	res, err := l.CastVote(ctx, scoutActor(), track.ID, 1)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 1, res.Track.Votes)

	// 第二位员工投反对票
	res, err = l.CastVote(ctx, managerActor(), track.ID, -1)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 0, res.Track.Votes)

	// 同一员工改票是覆盖而不是叠加
	res, err = l.CastVote(ctx, scoutActor(), track.ID, -1)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, -2, res.Track.Votes)
}

func TestCastVoteInvalidValue(t *testing.T) {
	store := newFakeStore(trackIn(PhaseSecondListen))
	l := NewLedger(store)

	for _, v := range []int{0, 2, -5} {
		res, err := l.CastVote(context.Background(), scoutActor(), 1, v)
		require.NoError(t, err)
		assert.False(t, res.OK, v)
		assert.Equal(t, CodeInvalidVote, res.Code)
	}
}

func TestCastVoteClosedOutsideSecondListen(t *testing.T) {
	for _, phase := range []Phase{PhaseInbox, PhaseTeamReview, PhaseContracting, PhaseUpcoming, PhaseVault} {
		store := newFakeStore(trackIn(phase))
		l := NewLedger(store)

		res, err := l.CastVote(context.Background(), ownerActor(), 1, 1)
		require.NoError(t, err)
		assert.False(t, res.OK, phase.String())
		assert.Equal(t, CodeVotingClosed, res.Code, phase.String())
	}
}

func TestCastVoteOnArchivedTrack(t *testing.T) {
	track := trackIn(PhaseSecondListen)
	track.Archived = true
	store := newFakeStore(track)
	l := NewLedger(store)

	res, err := l.CastVote(context.Background(), ownerActor(), track.ID, 1)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeAlreadyArchived, res.Code)
}

func TestCastVoteMissingTrack(t *testing.T) {
	l := NewLedger(newFakeStore())
	_, err := l.CastVote(context.Background(), ownerActor(), 404, 1)
	require.ErrorIs(t, err, ErrTrackNotFound)
}
