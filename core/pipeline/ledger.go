package pipeline

import (
	"context"

	"DemoCrate/logger"
)

// Ledger 投票台账。维护 (track, staff) 至多一票的不变量，
// 缓存的票数总和由存储层在同一事务内重算，避免与台账漂移。
type Ledger struct {
	store Store
}

// NewLedger 创建投票台账
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// CastVote 投票。同一员工重复投票是覆盖语义：聚合值按差额调整，
// 不会在旧值之上累加。只允许对 second-listen 阶段的曲目投票，
// 其他阶段显式拒绝而不是静默忽略。
func (l *Ledger) CastVote(ctx context.Context, actor Actor, trackID int64, value int) (Result, error) {
	if value != 1 && value != -1 {
		return denied(CodeInvalidVote, "a vote must be +1 or -1"), nil
	}

	track, err := l.store.GetTrack(ctx, trackID)
	if err != nil {
		return Result{}, err
	}
	if track == nil {
		return Result{}, ErrTrackNotFound
	}
	if track.Archived {
		return denied(CodeAlreadyArchived, "archived tracks cannot be voted on"), nil
	}

	phase, err := ParsePhase(track.Phase)
	if err != nil {
		return Result{}, err
	}
	if phase != PhaseSecondListen {
		return denied(CodeVotingClosed, "voting is only open during second listen"), nil
	}

	if !CanPerform(actor, ActionVote, phase) {
		return denied(CodeForbidden, "you are not allowed to vote on this track"), nil
	}

	total, err := l.store.UpsertVote(ctx, track.ID, actor.StaffID, value)
	if err != nil {
		return Result{}, err
	}

	logger.Debug("vote cast",
		logger.Int64("track", track.ID),
		logger.Int64("staff", actor.StaffID),
		logger.Int("value", value),
		logger.Int("total", total))

	updated := *track
	updated.Votes = total
	return committed(&updated), nil
}
