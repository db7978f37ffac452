package model

import "time"

// Organization 厂牌/团队，demo曲目的归属方。
// 个人工作区模式下每个员工拥有一个单人organization。
type Organization struct {
	ID                     int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name                   string    `json:"name" gorm:"size:100;not null"`
	RequireRejectionReason bool      `json:"requireRejectionReason" gorm:"default:false"`
	PersonalWorkspace      bool      `json:"personalWorkspace" gorm:"default:false"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Organization) TableName() string {
	return "organizations"
}
