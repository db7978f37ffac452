package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"DemoCrate/logger"
	"DemoCrate/model"
)

// ErrTrackNotFound 曲目不存在。与判定拒绝不同，这属于调用方传参/数据问题，
// 作为 error 返回。
var ErrTrackNotFound = errors.New("track not found")

// Direction 手工移动方向
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Machine 流水线状态机。每个操作都是对 (actor, track, input) 的一次纯判定，
// 产出要么是一次提交后的新状态，要么是类型化拒绝，绝不暴露部分变更。
// 并发控制依赖曲目行上的 version 乐观检查，单曲目单写入者。
type Machine struct {
	store Store
}

// NewMachine 创建状态机
func NewMachine(store Store) *Machine {
	return &Machine{store: store}
}

// load 读取曲目并解析当前阶段。阶段名非法视为存储层数据损坏，返回 error。
func (m *Machine) load(ctx context.Context, trackID int64) (*model.DemoTrack, Phase, error) {
	track, err := m.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load track %d: %w", trackID, err)
	}
	if track == nil {
		return nil, 0, ErrTrackNotFound
	}
	phase, err := ParsePhase(track.Phase)
	if err != nil {
		return nil, 0, fmt.Errorf("track %d has corrupt phase: %w", trackID, err)
	}
	return track, phase, nil
}

// Advance 把曲目推进到下一个阶段。
// 顺序：归档检查 → 终态检查 → 权限 → 门禁 → 提交。
func (m *Machine) Advance(ctx context.Context, actor Actor, trackID int64) (Result, error) {
	track, from, err := m.load(ctx, trackID)
	if err != nil {
		return Result{}, err
	}

	if track.Archived {
		return denied(CodeAlreadyArchived, "archived tracks cannot be advanced"), nil
	}

	to, ok := from.Next()
	if !ok {
		return denied(CodeTerminalPhase, "the track is already in the vault"), nil
	}

	if !CanPerform(actor, ActionAdvance, from) {
		return denied(CodeForbidden, "you are not allowed to advance this track"), nil
	}

	if gate := CheckGate(track, from, to); !gate.OK {
		return denied(gate.Code, gate.Message), nil
	}

	fields := map[string]interface{}{"phase": to.String()}
	// 入库vault即视为发行，落一个发行时间
	if to == PhaseVault && track.ReleaseDate == nil {
		if track.TargetReleaseDate != nil {
			fields["release_date"] = *track.TargetReleaseDate
		} else {
			fields["release_date"] = time.Now()
		}
	}

	updated, err := m.store.UpdateTrack(ctx, track.ID, track.Version, fields)
	if err != nil {
		return Result{}, err
	}

	logger.Info("track advanced",
		logger.Int64("track", track.ID),
		logger.Int64("staff", actor.StaffID),
		logger.String("from", from.String()),
		logger.String("to", to.String()))

	return committed(updated), nil
}

// Move 相邻阶段的手工移动。右移等同推进，要走权限和门禁；
// 左移是回撤，任何能看到曲目的员工都可以执行，不过门禁。
// 越界移动（inbox左移、vault右移）是空操作，返回未变的曲目。
func (m *Machine) Move(ctx context.Context, actor Actor, trackID int64, dir Direction) (Result, error) {
	track, from, err := m.load(ctx, trackID)
	if err != nil {
		return Result{}, err
	}

	if track.Archived {
		return denied(CodeAlreadyArchived, "archived tracks cannot be moved"), nil
	}

	// vault 对本引擎是吸收态，手工移动也不把曲目移出
	if from.Terminal() {
		return committed(track), nil
	}

	switch dir {
	case DirectionRight:
		to, ok := from.Next()
		if !ok {
			return committed(track), nil
		}
		if !CanPerform(actor, ActionAdvance, from) {
			return denied(CodeForbidden, "you are not allowed to move this track forward"), nil
		}
		if gate := CheckGate(track, from, to); !gate.OK {
			return denied(gate.Code, gate.Message), nil
		}
		updated, err := m.store.UpdateTrack(ctx, track.ID, track.Version, map[string]interface{}{"phase": to.String()})
		if err != nil {
			return Result{}, err
		}
		return committed(updated), nil

	case DirectionLeft:
		to, ok := from.Prev()
		if !ok {
			return committed(track), nil
		}
		fields := map[string]interface{}{"phase": to.String()}
		// contract_signed 只允许在 contracting 及之后为真，
		// 回撤到更早阶段时一并清掉
		if track.ContractSigned && to < PhaseContracting {
			fields["contract_signed"] = false
		}
		updated, err := m.store.UpdateTrack(ctx, track.ID, track.Version, fields)
		if err != nil {
			return Result{}, err
		}
		logger.Info("track demoted",
			logger.Int64("track", track.ID),
			logger.Int64("staff", actor.StaffID),
			logger.String("to", to.String()))
		return committed(updated), nil
	}

	return Result{}, fmt.Errorf("unknown move direction: %q", dir)
}

// Reject 淘汰归档。归档后曲目永久退出前向流水线，本引擎没有任何
// 反归档操作。对已归档曲目重复调用返回 ALREADY_ARCHIVED。
func (m *Machine) Reject(ctx context.Context, actor Actor, trackID int64, reason string) (Result, error) {
	track, from, err := m.load(ctx, trackID)
	if err != nil {
		return Result{}, err
	}

	if track.Archived {
		return denied(CodeAlreadyArchived, "the track is already archived"), nil
	}
	if from.Terminal() {
		return denied(CodeTerminalPhase, "vaulted tracks cannot be archived"), nil
	}

	if !CanPerform(actor, ActionReject, from) {
		return denied(CodeForbidden, "you are not allowed to reject this track"), nil
	}

	requireReason, err := m.store.RequireRejectionReason(ctx, track.OrgID)
	if err != nil {
		return Result{}, err
	}
	if gate := CheckRejectGate(from, reason, requireReason); !gate.OK {
		return denied(gate.Code, gate.Message), nil
	}

	updated, err := m.store.UpdateTrack(ctx, track.ID, track.Version, map[string]interface{}{
		"archived":         true,
		"rejection_reason": reason,
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info("track rejected",
		logger.Int64("track", track.ID),
		logger.Int64("staff", actor.StaffID),
		logger.String("phase", from.String()),
		logger.String("reason", reason))

	return committed(updated), nil
}

// ToggleContractSigned 勾选/取消合同签署状态。
// 勾选立即生效；取消是不对称的：可能让已经推进的曲目失效，
// 必须由调用方带 confirmed=true 再次发起。
// 取消不回撤 phase，后续推进会被 CONTRACT_NOT_SIGNED 门禁拦下，
// 阶段修正留给 Move(left)。
func (m *Machine) ToggleContractSigned(ctx context.Context, actor Actor, trackID int64, newValue, confirmed bool) (Result, error) {
	track, from, err := m.load(ctx, trackID)
	if err != nil {
		return Result{}, err
	}

	if track.Archived {
		return denied(CodeAlreadyArchived, "archived tracks cannot change contract state"), nil
	}

	if !CanPerform(actor, ActionToggleContract, from) {
		return denied(CodeForbidden, "you are not allowed to change the contract state"), nil
	}

	if track.ContractSigned == newValue {
		return committed(track), nil
	}

	if newValue {
		// 合同只在 contracting 及之后的阶段存在
		if from < PhaseContracting {
			return denied(CodeContractUnavailable, "the track has not reached the contracting stage"), nil
		}
	} else if !confirmed {
		return denied(CodeConfirmRequired, "unchecking the signed contract requires confirmation"), nil
	}

	updated, err := m.store.UpdateTrack(ctx, track.ID, track.Version, map[string]interface{}{
		"contract_signed": newValue,
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info("contract state changed",
		logger.Int64("track", track.ID),
		logger.Int64("staff", actor.StaffID),
		logger.Bool("signed", newValue))

	return committed(updated), nil
}
