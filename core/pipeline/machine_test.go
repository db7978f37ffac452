package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceHappyPathThroughAllPhases(t *testing.T) {
	track := trackIn(PhaseInbox)
	track.Energy = 4
	target := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	track.TargetReleaseDate = &target
	track.ContractSigned = true

	store := newFakeStore(track)
	m := NewMachine(store)
	ctx := context.Background()

	for _, want := range []Phase{PhaseSecondListen, PhaseTeamReview, PhaseContracting, PhaseUpcoming, PhaseVault} {
		res, err := m.Advance(ctx, ownerActor(), track.ID)
		require.NoError(t, err)
		require.True(t, res.OK, "advancing to %s: %s", want, res.Message)
		assert.Equal(t, want.String(), res.Track.Phase)
	}

	// 入库即发行：release_date 取目标发行日
	final := store.tracks[track.ID]
	require.NotNil(t, final.ReleaseDate)
	assert.Equal(t, target, *final.ReleaseDate)
}

func TestAdvanceBlockedByEnergyGate(t *testing.T) {
	track := trackIn(PhaseSecondListen)
	store := newFakeStore(track)
	m := NewMachine(store)

	res, err := m.Advance(context.Background(), ownerActor(), track.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeEnergyNotSet, res.Code)

	// 门禁失败不产生任何写入
	assert.Equal(t, 0, store.updateCalls)
	assert.Equal(t, PhaseSecondListen.String(), store.tracks[track.ID].Phase)
}

func TestAdvanceForbiddenForScoutBeyondInbox(t *testing.T) {
	track := trackIn(PhaseSecondListen)
	track.Energy = 5
	store := newFakeStore(track)
	m := NewMachine(store)

	res, err := m.Advance(context.Background(), scoutActor(), track.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeForbidden, res.Code)
	assert.Equal(t, 0, store.updateCalls)
}

func TestAdvanceOnVaultIsTerminal(t *testing.T) {
	store := newFakeStore(trackIn(PhaseVault))
	m := NewMachine(store)

	res, err := m.Advance(context.Background(), ownerActor(), 1)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeTerminalPhase, res.Code)
}

func TestAdvanceOnArchivedTrack(t *testing.T) {
	track := trackIn(PhaseTeamReview)
	track.Archived = true
	store := newFakeStore(track)
	m := NewMachine(store)

	res, err := m.Advance(context.Background(), ownerActor(), track.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeAlreadyArchived, res.Code)
}

func TestAdvanceMissingTrack(t *testing.T) {
	m := NewMachine(newFakeStore())
	_, err := m.Advance(context.Background(), ownerActor(), 404)
	require.ErrorIs(t, err, ErrTrackNotFound)
}

func TestMoveLeftFromInboxIsNoOp(t *testing.T) {
	store := newFakeStore(trackIn(PhaseInbox))
	m := NewMachine(store)

	res, err := m.Move(context.Background(), ownerActor(), 1, DirectionLeft)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, PhaseInbox.String(), res.Track.Phase)
	assert.Equal(t, 0, store.updateCalls)
}

func TestMoveOnVaultIsNoOp(t *testing.T) {
	store := newFakeStore(trackIn(PhaseVault))
	m := NewMachine(store)

	for _, dir := range []Direction{DirectionLeft, DirectionRight} {
		res, err := m.Move(context.Background(), ownerActor(), 1, dir)
		require.NoError(t, err)
		require.True(t, res.OK, dir)
		assert.Equal(t, PhaseVault.String(), res.Track.Phase)
	}
	assert.Equal(t, 0, store.updateCalls)
}

func TestMoveRightEnforcesGate(t *testing.T) {
	track := trackIn(PhaseContracting)
	store := newFakeStore(track)
	m := NewMachine(store)

	res, err := m.Move(context.Background(), managerActor(), track.ID, DirectionRight)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeContractNotSigned, res.Code)

	store.tracks[track.ID].ContractSigned = true
	res, err = m.Move(context.Background(), managerActor(), track.ID, DirectionRight)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, PhaseUpcoming.String(), res.Track.Phase)
}

func TestMoveLeftSkipsGatesAndPermissions(t *testing.T) {
	// 左移是回撤，scout 也可以执行
	store := newFakeStore(trackIn(PhaseTeamReview))
	m := NewMachine(store)

	res, err := m.Move(context.Background(), scoutActor(), 1, DirectionLeft)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, PhaseSecondListen.String(), res.Track.Phase)
}

func TestMoveLeftBelowContractingClearsSignedFlag(t *testing.T) {
	track := trackIn(PhaseContracting)
	track.ContractSigned = true
	store := newFakeStore(track)
	m := NewMachine(store)

	res, err := m.Move(context.Background(), ownerActor(), track.ID, DirectionLeft)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, PhaseTeamReview.String(), res.Track.Phase)
	assert.False(t, res.Track.ContractSigned)
}

func TestRejectArchivesWithReason(t *testing.T) {
	track := trackIn(PhaseTeamReview)
	store := newFakeStore(track)
	store.requireReason[track.OrgID] = true
	m := NewMachine(store)
	ctx := context.Background()

	// 留痕设置开着，不给原因被拦
	res, err := m.Reject(ctx, managerActor(), track.ID, "")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeReasonRequired, res.Code)

	res, err = m.Reject(ctx, managerActor(), track.ID, "vocals too thin")
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.True(t, res.Track.Archived)
	assert.Equal(t, "vocals too thin", res.Track.RejectionReason)
	// 归档不改变所在阶段
	assert.Equal(t, PhaseTeamReview.String(), res.Track.Phase)

	// 重复淘汰：已归档
	res, err = m.Reject(ctx, managerActor(), track.ID, "again")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeAlreadyArchived, res.Code)
}

func TestRejectVaultedTrack(t *testing.T) {
	store := newFakeStore(trackIn(PhaseVault))
	m := NewMachine(store)

	res, err := m.Reject(context.Background(), ownerActor(), 1, "late regret")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeTerminalPhase, res.Code)
}

func TestRejectForbiddenForScoutInLatePhase(t *testing.T) {
	store := newFakeStore(trackIn(PhaseTeamReview))
	m := NewMachine(store)

	res, err := m.Reject(context.Background(), scoutActor(), 1, "nah")
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeForbidden, res.Code)
}

func TestToggleContractBeforeContractingPhase(t *testing.T) {
	store := newFakeStore(trackIn(PhaseSecondListen))
	m := NewMachine(store)

	res, err := m.ToggleContractSigned(context.Background(), ownerActor(), 1, true, false)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeContractUnavailable, res.Code)
}

func TestToggleContractUncheckAsymmetry(t *testing.T) {
	track := trackIn(PhaseUpcoming)
	track.ContractSigned = true
	store := newFakeStore(track)
	m := NewMachine(store)
	ctx := context.Background()

	// 取消必须二次确认
	res, err := m.ToggleContractSigned(ctx, ownerActor(), track.ID, false, false)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeConfirmRequired, res.Code)
	assert.True(t, store.tracks[track.ID].ContractSigned)

	// 带确认后生效，且不回撤阶段
	res, err = m.ToggleContractSigned(ctx, ownerActor(), track.ID, false, true)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.False(t, res.Track.ContractSigned)
	assert.Equal(t, PhaseUpcoming.String(), res.Track.Phase)
}

func TestToggleContractSameValueIsNoOp(t *testing.T) {
	track := trackIn(PhaseContracting)
	store := newFakeStore(track)
	m := NewMachine(store)

	res, err := m.ToggleContractSigned(context.Background(), managerActor(), track.ID, false, false)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, 0, store.updateCalls)
}

func TestToggleContractForbiddenForScout(t *testing.T) {
	store := newFakeStore(trackIn(PhaseContracting))
	m := NewMachine(store)

	res, err := m.ToggleContractSigned(context.Background(), scoutActor(), 1, true, false)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, CodeForbidden, res.Code)
}

func TestVersionConflictSurfacesAsError(t *testing.T) {
	track := trackIn(PhaseInbox)
	store := newFakeStore(track)
	m := NewMachine(store)
	ctx := context.Background()

	// 判定期间另一个写入者抢先提交
	loaded, _, err := m.load(ctx, track.ID)
	require.NoError(t, err)
	store.tracks[track.ID].Version = loaded.Version + 1

	_, err = store.UpdateTrack(ctx, track.ID, loaded.Version, map[string]interface{}{"phase": PhaseSecondListen.String()})
	require.ErrorIs(t, err, ErrVersionConflict)
}
