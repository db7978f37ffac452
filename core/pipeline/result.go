package pipeline

import "DemoCrate/model"

// Code 操作被拒绝时的类型化原因。门禁失败和权限拒绝是常规业务结果，
// 以 Result 值返回而不是 error，存储等系统性故障才走 error。
type Code string

const (
	CodeForbidden           Code = "FORBIDDEN"
	CodeEnergyNotSet        Code = "ENERGY_NOT_SET"
	CodeReleaseDateRequired Code = "RELEASE_DATE_REQUIRED"
	CodeContractNotSigned   Code = "CONTRACT_NOT_SIGNED"
	CodeReasonRequired      Code = "REASON_REQUIRED"
	CodeAlreadyArchived     Code = "ALREADY_ARCHIVED"
	CodeTerminalPhase       Code = "TERMINAL_PHASE"
	CodeConfirmRequired     Code = "CONFIRM_REQUIRED"
	CodeContractUnavailable Code = "CONTRACT_NOT_AVAILABLE"
	CodeVotingClosed        Code = "VOTING_CLOSED"
	CodeInvalidVote         Code = "INVALID_VOTE"
	CodePhaseConflict       Code = "PHASE_CONFLICT"
)

// Result 引擎对外的判定结果：要么提交后的新曲目状态，要么类型化拒绝。
// 调用方必须按 OK 分支处理，不依赖异常。
type Result struct {
	OK      bool             `json:"ok"`
	Track   *model.DemoTrack `json:"track,omitempty"`
	Code    Code             `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

func committed(track *model.DemoTrack) Result {
	return Result{OK: true, Track: track}
}

func denied(code Code, message string) Result {
	return Result{OK: false, Code: code, Message: message}
}
