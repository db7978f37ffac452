package pipeline

import (
	"context"
	"errors"

	"DemoCrate/model"
)

// ErrVersionConflict 乐观锁冲突：曲目在本次判定期间被其他写入者修改。
// 调用方重新读取后重试即可，引擎本身不做重试。
var ErrVersionConflict = errors.New("track version conflict")

// Store 引擎对存储协作方的最小契约。所有更新必须行级原子，
// 投票 upsert 与聚合值重算必须在同一事务内完成。
type Store interface {
	// GetTrack 按ID读取曲目，不存在时返回 (nil, nil)
	GetTrack(ctx context.Context, id int64) (*model.DemoTrack, error)

	// UpdateTrack 带乐观版本检查的部分字段更新，返回更新后的曲目。
	// 版本不匹配时返回 ErrVersionConflict。
	UpdateTrack(ctx context.Context, id, expectedVersion int64, fields map[string]interface{}) (*model.DemoTrack, error)

	// UpsertVote 写入或覆盖 (track, staff) 的投票，并在同一事务内
	// 重算缓存的票数总和，返回新的总和。
	UpsertVote(ctx context.Context, trackID, staffID int64, value int) (int, error)

	// RequireRejectionReason 读取厂牌的淘汰留痕设置
	RequireRejectionReason(ctx context.Context, orgID int64) (bool, error)
}
