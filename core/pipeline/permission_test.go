package pipeline

import (
	"testing"

	"DemoCrate/model"

	"github.com/stretchr/testify/assert"
)

func TestSystemAdminAlwaysAllowed(t *testing.T) {
	admin := adminActor()
	// 即使带着显式关闭的覆盖，sysadmin 也放行
	admin.Overrides = model.PermissionSet{"can_advance": false}

	for _, action := range []Action{ActionAdvance, ActionReject, ActionVote, ActionViewMetrics, ActionToggleContract} {
		for p := PhaseInbox; p <= PhaseVault; p++ {
			assert.True(t, CanPerform(admin, action, p), "%s at %s", action, p)
		}
	}
}

func TestOverrideBeatsRoleDefault(t *testing.T) {
	scout := scoutActor()
	scout.Overrides = model.PermissionSet{"can_advance": true}
	assert.True(t, CanPerform(scout, ActionAdvance, PhaseTeamReview))

	owner := ownerActor()
	owner.Overrides = model.PermissionSet{"can_reject": false}
	assert.False(t, CanPerform(owner, ActionReject, PhaseInbox))
}

func TestScoutAdvanceLimitedToInbox(t *testing.T) {
	scout := scoutActor()
	assert.True(t, CanPerform(scout, ActionAdvance, PhaseInbox))
	for p := PhaseSecondListen; p <= PhaseUpcoming; p++ {
		assert.False(t, CanPerform(scout, ActionAdvance, p), p.String())
	}
}

func TestScoutRejectEarlyPhasesOnly(t *testing.T) {
	scout := scoutActor()
	assert.True(t, CanPerform(scout, ActionReject, PhaseInbox))
	assert.True(t, CanPerform(scout, ActionReject, PhaseSecondListen))
	assert.False(t, CanPerform(scout, ActionReject, PhaseTeamReview))
	assert.False(t, CanPerform(scout, ActionReject, PhaseContracting))
}

func TestVoteOpenToAllRolesDuringSecondListen(t *testing.T) {
	for _, actor := range []Actor{ownerActor(), managerActor(), scoutActor()} {
		assert.True(t, CanPerform(actor, ActionVote, PhaseSecondListen), actor.Role)
		assert.False(t, CanPerform(actor, ActionVote, PhaseInbox), actor.Role)
		assert.False(t, CanPerform(actor, ActionVote, PhaseTeamReview), actor.Role)
	}
}

func TestContractAndReleaseDateLimitedToOwnerManager(t *testing.T) {
	assert.True(t, CanPerform(ownerActor(), ActionToggleContract, PhaseContracting))
	assert.True(t, CanPerform(managerActor(), ActionEditReleaseDate, PhaseTeamReview))
	assert.False(t, CanPerform(scoutActor(), ActionToggleContract, PhaseContracting))
	assert.False(t, CanPerform(scoutActor(), ActionEditReleaseDate, PhaseTeamReview))
}

func TestViewMetricsRequiresOverride(t *testing.T) {
	// 指标默认对所有角色关闭
	for _, actor := range []Actor{ownerActor(), managerActor(), scoutActor()} {
		assert.False(t, CanPerform(actor, ActionViewMetrics, PhaseInbox), actor.Role)
	}

	manager := managerActor()
	manager.Overrides = model.PermissionSet{"can_view_metrics": true}
	assert.True(t, CanPerform(manager, ActionViewMetrics, PhaseInbox))
}
