package pipeline

import "DemoCrate/model"

// Action 引擎可被授权的操作。新增角色/操作时只扩展默认表，
// 不在调用方散落角色字符串比较。
type Action string

const (
	ActionAdvance         Action = "advance"
	ActionReject          Action = "reject"
	ActionEditEnergy      Action = "editEnergy"
	ActionEditReleaseDate Action = "editReleaseDate"
	ActionToggleContract  Action = "toggleContract"
	ActionViewMetrics     Action = "viewMetrics"
	ActionVote            Action = "vote"
)

// Action 对应的员工级覆盖键（staff.overrides JSON 字段中的键名）
var overrideKeys = map[Action]string{
	ActionAdvance:         "can_advance",
	ActionReject:          "can_reject",
	ActionEditEnergy:      "can_edit_energy",
	ActionEditReleaseDate: "can_edit_release_date",
	ActionToggleContract:  "can_toggle_contract",
	ActionViewMetrics:     "can_view_metrics",
	ActionVote:            "can_vote",
}

// Actor 执行操作的员工：角色 + 员工级权限覆盖。
// 由认证层解析后传入，引擎不做任何凭证校验。
type Actor struct {
	StaffID   int64
	Name      string
	Role      string
	Overrides model.PermissionSet
}

// CanPerform 判定 actor 能否在当前阶段执行 action。纯函数，不产生副作用，
// 拒绝时只返回 false，由调用方负责向用户呈现。
//
// 判定顺序：
//  1. SystemAdmin 永远允许
//  2. 员工级覆盖存在则以覆盖为准
//  3. 角色默认表
func CanPerform(actor Actor, action Action, phase Phase) bool {
	if actor.Role == model.RoleSystemAdmin {
		return true
	}

	if key, ok := overrideKeys[action]; ok {
		if v, ok := actor.Overrides[key]; ok {
			return v
		}
	}

	return roleDefault(actor.Role, action, phase)
}

// roleDefault 角色默认权限表
func roleDefault(role string, action Action, phase Phase) bool {
	switch action {
	case ActionAdvance:
		// Owner/Manager 可以把曲目推进到 second-listen 之后，Scout 不行
		if role == model.RoleOwner || role == model.RoleManager {
			return true
		}
		if role == model.RoleScout {
			return phase == PhaseInbox
		}
		return false

	case ActionReject:
		if role == model.RoleOwner || role == model.RoleManager {
			return true
		}
		// Scout 只能在早期阶段淘汰demo
		if role == model.RoleScout {
			return phase == PhaseInbox || phase == PhaseSecondListen
		}
		return false

	case ActionVote:
		// 所有员工都可在 second-listen 阶段投票
		return phase == PhaseSecondListen

	case ActionEditEnergy:
		return role == model.RoleOwner || role == model.RoleManager || role == model.RoleScout

	case ActionEditReleaseDate, ActionToggleContract:
		return role == model.RoleOwner || role == model.RoleManager

	case ActionViewMetrics:
		// 财务/表现指标只看 can_view_metrics 覆盖，与角色无关
		return false
	}

	return false
}
