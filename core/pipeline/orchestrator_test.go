package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseSetupFlow(t *testing.T) {
	track := trackIn(PhaseTeamReview)
	store := newFakeStore(track)
	m := NewMachine(store)
	o := NewOrchestrator(m, store)
	ctx := context.Background()

	// 没有目标发行日时推进被门禁拦下，编排器原样上报
	res, err := o.Advance(ctx, ownerActor(), track.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeReleaseDateRequired, res.Code)

	// 前端收集到日期后补完流转
	target := time.Date(2026, 12, 4, 0, 0, 0, 0, time.UTC)
	res, err = o.CompleteReleaseSetup(ctx, ownerActor(), track.ID, target)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, PhaseContracting.String(), res.Track.Phase)
	require.NotNil(t, res.Track.TargetReleaseDate)
	assert.Equal(t, target, *res.Track.TargetReleaseDate)

	// 日期和阶段是同一次提交
	assert.Equal(t, 1, store.updateCalls)
}

func TestReleaseSetupOutsideTeamReview(t *testing.T) {
	store := newFakeStore(trackIn(PhaseContracting))
	m := NewMachine(store)
	o := NewOrchestrator(m, store)

	res, err := o.CompleteReleaseSetup(context.Background(), ownerActor(), 1, time.Now())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodePhaseConflict, res.Code)
	assert.Equal(t, 0, store.updateCalls)
}

func TestReleaseSetupZeroDate(t *testing.T) {
	store := newFakeStore(trackIn(PhaseTeamReview))
	m := NewMachine(store)
	o := NewOrchestrator(m, store)

	res, err := o.CompleteReleaseSetup(context.Background(), ownerActor(), 1, time.Time{})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeReleaseDateRequired, res.Code)
}

func TestReleaseSetupForbiddenForScout(t *testing.T) {
	store := newFakeStore(trackIn(PhaseTeamReview))
	m := NewMachine(store)
	o := NewOrchestrator(m, store)

	res, err := o.CompleteReleaseSetup(context.Background(), scoutActor(), 1, time.Now())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeForbidden, res.Code)
}

func TestReleaseSetupOnArchivedTrack(t *testing.T) {
	track := trackIn(PhaseTeamReview)
	track.Archived = true
	store := newFakeStore(track)
	m := NewMachine(store)
	o := NewOrchestrator(m, store)

	res, err := o.CompleteReleaseSetup(context.Background(), ownerActor(), track.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeAlreadyArchived, res.Code)
}
