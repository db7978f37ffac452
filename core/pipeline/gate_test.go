package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateEnergyRequiredBeforeTeamReview(t *testing.T) {
	track := trackIn(PhaseSecondListen)
	res := CheckGate(track, PhaseSecondListen, PhaseTeamReview)
	assert.False(t, res.OK)
	assert.Equal(t, CodeEnergyNotSet, res.Code)

	track.Energy = 3
	assert.True(t, CheckGate(track, PhaseSecondListen, PhaseTeamReview).OK)
}

func TestGateReleaseDateRequiredBeforeContracting(t *testing.T) {
	track := trackIn(PhaseTeamReview)
	res := CheckGate(track, PhaseTeamReview, PhaseContracting)
	assert.False(t, res.OK)
	assert.Equal(t, CodeReleaseDateRequired, res.Code)

	d := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	track.TargetReleaseDate = &d
	assert.True(t, CheckGate(track, PhaseTeamReview, PhaseContracting).OK)
}

func TestGateContractRequiredBeforeUpcoming(t *testing.T) {
	track := trackIn(PhaseContracting)
	res := CheckGate(track, PhaseContracting, PhaseUpcoming)
	assert.False(t, res.OK)
	assert.Equal(t, CodeContractNotSigned, res.Code)

	track.ContractSigned = true
	assert.True(t, CheckGate(track, PhaseContracting, PhaseUpcoming).OK)
}

func TestGateUngatedTransitionsPass(t *testing.T) {
	track := trackIn(PhaseInbox)
	assert.True(t, CheckGate(track, PhaseInbox, PhaseSecondListen).OK)
	assert.True(t, CheckGate(trackIn(PhaseUpcoming), PhaseUpcoming, PhaseVault).OK)
}

func TestRejectGateReasonOnlyInLatePhases(t *testing.T) {
	// 厂牌开了留痕：team-review 起必须给原因
	res := CheckRejectGate(PhaseTeamReview, "", true)
	assert.False(t, res.OK)
	assert.Equal(t, CodeReasonRequired, res.Code)

	assert.True(t, CheckRejectGate(PhaseTeamReview, "off brand", true).OK)

	// 早期阶段不要求原因
	assert.True(t, CheckRejectGate(PhaseInbox, "", true).OK)
	assert.True(t, CheckRejectGate(PhaseSecondListen, "", true).OK)

	// 厂牌没开留痕时任何阶段都不要求
	assert.True(t, CheckRejectGate(PhaseUpcoming, "", false).OK)
}
