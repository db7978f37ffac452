package repository

import (
	"context"
	"errors"

	"DemoCrate/model"

	"gorm.io/gorm"
)

// OrganizationRepository 厂牌数据访问接口
type OrganizationRepository interface {
	Create(ctx context.Context, org *model.Organization) error
	GetByID(ctx context.Context, id int64) (*model.Organization, error)
	UpdateSettings(ctx context.Context, id int64, requireRejectionReason bool) error
}

// gormOrganizationRepository GORM 实现
type gormOrganizationRepository struct {
	db *gorm.DB
}

// NewGormOrganizationRepository 创建 GORM 厂牌仓库
func NewGormOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &gormOrganizationRepository{db: db}
}

// Create 创建厂牌
func (r *gormOrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// GetByID 按ID获取厂牌
func (r *gormOrganizationRepository) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).First(&org, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

// UpdateSettings 更新厂牌的淘汰留痕设置
func (r *gormOrganizationRepository) UpdateSettings(ctx context.Context, id int64, requireRejectionReason bool) error {
	return r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ?", id).
		Update("require_rejection_reason", requireRejectionReason).Error
}
