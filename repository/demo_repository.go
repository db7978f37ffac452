package repository

import (
	"context"
	"errors"
	"fmt"

	"DemoCrate/core/pipeline"
	"DemoCrate/model"

	"gorm.io/gorm"
)

// DemoRepository 流水线曲目数据访问接口。
// 同时满足引擎的 pipeline.Store 契约和外围 CRUD 的需要。
type DemoRepository interface {
	pipeline.Store

	// 投稿与看板
	Create(ctx context.Context, track *model.DemoTrack) error
	GetByPublicID(ctx context.Context, publicID string) (*model.DemoTrack, error)
	ListByOrg(ctx context.Context, orgID int64, includeArchived bool) ([]*model.DemoTrack, error)

	// 协作者可直接编辑描述性字段，不经过状态机（不改phase）
	UpdateDescriptive(ctx context.Context, id int64, fields map[string]interface{}) (*model.DemoTrack, error)

	// 指标汇总（按阶段计数）
	CountByPhase(ctx context.Context, orgID int64) (map[string]int64, error)
}

// gormDemoRepository GORM 实现
type gormDemoRepository struct {
	db *gorm.DB
}

// NewGormDemoRepository 创建 GORM 曲目仓库
func NewGormDemoRepository(db *gorm.DB) DemoRepository {
	return &gormDemoRepository{db: db}
}

// 允许通过 UpdateTrack 写入的列，防止引擎以外的字段从流转路径溜进来
var allowedTransitionColumns = map[string]bool{
	"phase":               true,
	"archived":            true,
	"rejection_reason":    true,
	"contract_signed":     true,
	"release_date":        true,
	"target_release_date": true,
}

// 描述性字段白名单（协作者直接编辑）
var allowedDescriptiveColumns = map[string]bool{
	"artist_name": true,
	"title":       true,
	"genre":       true,
	"bpm":         true,
	"energy":      true,
	"audio_link":  true,
	"object_key":  true,
}

// ========== pipeline.Store ==========

// GetTrack 按ID读取曲目，阶段别名在此边界解码为规范名
func (r *gormDemoRepository) GetTrack(ctx context.Context, id int64) (*model.DemoTrack, error) {
	var track model.DemoTrack
	err := r.db.WithContext(ctx).First(&track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	normalizePhase(&track)
	return &track, nil
}

// UpdateTrack 带乐观版本检查的部分更新。WHERE 带上 version，
// 行没打中说明并发写入者先提交了，报 ErrVersionConflict。
func (r *gormDemoRepository) UpdateTrack(ctx context.Context, id, expectedVersion int64, fields map[string]interface{}) (*model.DemoTrack, error) {
	for col := range fields {
		if !allowedTransitionColumns[col] {
			return nil, fmt.Errorf("column %q is not writable through a transition", col)
		}
	}

	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).Model(&model.DemoTrack{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 区分"曲目不存在"和"版本落后"
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.DemoTrack{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, pipeline.ErrVersionConflict
	}

	return r.GetTrack(ctx, id)
}

// UpsertVote 覆盖式写入投票并在同一事务内重算缓存总和。
// 聚合值不参与 version 乐观锁，投票风暴不会饿死阶段流转。
func (r *gormDemoRepository) UpsertVote(ctx context.Context, trackID, staffID int64, value int) (int, error) {
	var total int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.DemoVote
		err := tx.Where("track_id = ? AND staff_id = ?", trackID, staffID).First(&existing).Error
		switch {
		case err == nil:
			if existing.Value != value {
				existing.Value = value
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := model.DemoVote{TrackID: trackID, StaffID: staffID, Value: value}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
		default:
			return err
		}

		// 从台账重算，而不是在缓存值上加减，杜绝漂移
		row := tx.Model(&model.DemoVote{}).
			Where("track_id = ?", trackID).
			Select("COALESCE(SUM(value), 0)")
		if err := row.Scan(&total).Error; err != nil {
			return err
		}

		return tx.Model(&model.DemoTrack{}).
			Where("id = ?", trackID).
			Update("votes", total).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert vote for track %d: %w", trackID, err)
	}

	return int(total), nil
}

// RequireRejectionReason 读取厂牌的淘汰留痕设置
func (r *gormDemoRepository) RequireRejectionReason(ctx context.Context, orgID int64) (bool, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).First(&org, orgID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return org.RequireRejectionReason, nil
}

// ========== CRUD ==========

// Create 创建inbox投稿
func (r *gormDemoRepository) Create(ctx context.Context, track *model.DemoTrack) error {
	if track.Phase == "" {
		track.Phase = model.PhaseInbox
	}
	return r.db.WithContext(ctx).Create(track).Error
}

// GetByPublicID 按对外UUID读取曲目
func (r *gormDemoRepository) GetByPublicID(ctx context.Context, publicID string) (*model.DemoTrack, error) {
	var track model.DemoTrack
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	normalizePhase(&track)
	return &track, nil
}

// ListByOrg 按厂牌列出看板曲目
func (r *gormDemoRepository) ListByOrg(ctx context.Context, orgID int64, includeArchived bool) ([]*model.DemoTrack, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}

	var tracks []*model.DemoTrack
	if err := q.Order("created_at DESC").Find(&tracks).Error; err != nil {
		return nil, err
	}
	for _, t := range tracks {
		normalizePhase(t)
	}
	return tracks, nil
}

// UpdateDescriptive 更新描述性字段，白名单约束，phase等流转字段一律拒绝
func (r *gormDemoRepository) UpdateDescriptive(ctx context.Context, id int64, fields map[string]interface{}) (*model.DemoTrack, error) {
	for col := range fields {
		if !allowedDescriptiveColumns[col] {
			return nil, fmt.Errorf("column %q is not a descriptive field", col)
		}
	}
	if len(fields) == 0 {
		return r.GetTrack(ctx, id)
	}

	res := r.db.WithContext(ctx).Model(&model.DemoTrack{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetTrack(ctx, id)
}

// CountByPhase 按阶段统计在板曲目数
func (r *gormDemoRepository) CountByPhase(ctx context.Context, orgID int64) (map[string]int64, error) {
	type phaseCount struct {
		Phase string
		Count int64
	}
	var rows []phaseCount
	err := r.db.WithContext(ctx).Model(&model.DemoTrack{}).
		Select("phase, COUNT(*) as count").
		Where("org_id = ? AND archived = ?", orgID, false).
		Group("phase").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Phase] = row.Count
	}
	return counts, nil
}

// normalizePhase 在存储边界把历史别名解码为规范阶段名，只解码一次
func normalizePhase(track *model.DemoTrack) {
	if p, err := pipeline.ParsePhase(track.Phase); err == nil {
		track.Phase = p.String()
	}
}
