package pipeline

import "DemoCrate/model"

// GateResult 门禁判定结果。失败不修改曲目，原因原样报告给调用方。
type GateResult struct {
	OK      bool
	Code    Code
	Message string
}

func gateOK() GateResult {
	return GateResult{OK: true}
}

func gateFail(code Code, message string) GateResult {
	return GateResult{OK: false, Code: code, Message: message}
}

// CheckGate 检查 from→to 前向流转的前置条件，固定顺序逐条评估。
// 纯谓词：只读曲目字段，任何失败都不产生状态变更。
func CheckGate(track *model.DemoTrack, from, to Phase) GateResult {
	switch {
	case from == PhaseSecondListen && to == PhaseTeamReview:
		if track.Energy <= 0 {
			return gateFail(CodeEnergyNotSet, "Please set the Energy Level before advancing")
		}

	case from == PhaseTeamReview && to == PhaseContracting:
		if track.TargetReleaseDate == nil {
			return gateFail(CodeReleaseDateRequired, "A target release date is required before contracting")
		}

	case from == PhaseContracting && to == PhaseUpcoming:
		if !track.ContractSigned {
			return gateFail(CodeContractNotSigned, "The contract must be signed before scheduling the release")
		}
	}

	return gateOK()
}

// 淘汰时需要填写原因的阶段：曲目已经通过团队审听，废弃必须留痕
var rejectReasonPhases = map[Phase]bool{
	PhaseTeamReview:  true,
	PhaseContracting: true,
	PhaseUpcoming:    true,
}

// CheckRejectGate 检查淘汰归档的前置条件。
// requireReason 来自厂牌设置 require_rejection_reason。
func CheckRejectGate(from Phase, reason string, requireReason bool) GateResult {
	if requireReason && rejectReasonPhases[from] && reason == "" {
		return gateFail(CodeReasonRequired, "A rejection reason is required at this stage")
	}
	return gateOK()
}
