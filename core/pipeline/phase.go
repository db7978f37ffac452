package pipeline

import (
	"fmt"

	"DemoCrate/model"
)

// Phase 流水线阶段，顺序即流转顺序。
type Phase int

const (
	PhaseInbox Phase = iota
	PhaseSecondListen
	PhaseTeamReview
	PhaseContracting
	PhaseUpcoming
	PhaseVault
)

var phaseNames = [...]string{
	model.PhaseInbox,
	model.PhaseSecondListen,
	model.PhaseTeamReview,
	model.PhaseContracting,
	model.PhaseUpcoming,
	model.PhaseVault,
}

// 历史数据中 column/crate/status 字段混用时期留下的别名，
// 在存储边界统一解码为规范阶段名。
var legacyPhaseAliases = map[string]Phase{
	"demos":       PhaseInbox,
	"new":         PhaseInbox,
	"second":      PhaseSecondListen,
	"listen":      PhaseSecondListen,
	"review":      PhaseTeamReview,
	"team":        PhaseTeamReview,
	"contract":    PhaseContracting,
	"contracting": PhaseContracting,
	"scheduled":   PhaseUpcoming,
	"released":    PhaseVault,
}

// String 返回阶段的规范名
func (p Phase) String() string {
	if !p.Valid() {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Valid 检查阶段值是否合法
func (p Phase) Valid() bool {
	return p >= PhaseInbox && p <= PhaseVault
}

// Next 返回下一个阶段，vault 没有下一个阶段
func (p Phase) Next() (Phase, bool) {
	if !p.Valid() || p == PhaseVault {
		return p, false
	}
	return p + 1, true
}

// Prev 返回上一个阶段，inbox 没有上一个阶段
func (p Phase) Prev() (Phase, bool) {
	if !p.Valid() || p == PhaseInbox {
		return p, false
	}
	return p - 1, true
}

// Terminal 报告阶段对前向流水线是否为吸收态
func (p Phase) Terminal() bool {
	return p == PhaseVault
}

// ParsePhase 解析阶段名，兼容历史别名。
// 未知名称返回错误，调用方视作存储层数据损坏。
func ParsePhase(s string) (Phase, error) {
	for i, name := range phaseNames {
		if name == s {
			return Phase(i), nil
		}
	}
	if p, ok := legacyPhaseAliases[s]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown pipeline phase: %q", s)
}
