package pipeline

import (
	"context"
	"time"

	"DemoCrate/logger"
)

// Orchestrator 编排需要调用方补充输入的多步流转。
// 状态机报告 RELEASE_DATE_REQUIRED 后，调用方在界面上收集目标发行日，
// 再调用 CompleteReleaseSetup 把写日期和 team-review→contracting 流转
// 合成一次原子提交——不存在"日期已写、阶段未动"的中间持久态。
type Orchestrator struct {
	machine *Machine
	store   Store
}

// NewOrchestrator 创建流转编排器
func NewOrchestrator(machine *Machine, store Store) *Orchestrator {
	return &Orchestrator{machine: machine, store: store}
}

// Advance 透传给状态机。调用方收到 RELEASE_DATE_REQUIRED 时
// 应打开发行设置表单，随后调用 CompleteReleaseSetup。
func (o *Orchestrator) Advance(ctx context.Context, actor Actor, trackID int64) (Result, error) {
	return o.machine.Advance(ctx, actor, trackID)
}

// CompleteReleaseSetup 原子地写入目标发行日并完成 team-review→contracting
// 流转。两个效果同一次提交生效，失败则全部不生效。
func (o *Orchestrator) CompleteReleaseSetup(ctx context.Context, actor Actor, trackID int64, target time.Time) (Result, error) {
	track, phase, err := o.machine.load(ctx, trackID)
	if err != nil {
		return Result{}, err
	}

	if track.Archived {
		return denied(CodeAlreadyArchived, "archived tracks cannot be scheduled"), nil
	}
	if phase != PhaseTeamReview {
		return denied(CodePhaseConflict, "release setup only applies to tracks in team review"), nil
	}

	if !CanPerform(actor, ActionAdvance, phase) || !CanPerform(actor, ActionEditReleaseDate, phase) {
		return denied(CodeForbidden, "you are not allowed to schedule this track"), nil
	}

	if target.IsZero() {
		return denied(CodeReleaseDateRequired, "a target release date is required"), nil
	}

	updated, err := o.store.UpdateTrack(ctx, track.ID, track.Version, map[string]interface{}{
		"target_release_date": target,
		"phase":               PhaseContracting.String(),
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info("release setup completed",
		logger.Int64("track", track.ID),
		logger.Int64("staff", actor.StaffID),
		logger.String("target", target.Format("2006-01-02")))

	return committed(updated), nil
}
