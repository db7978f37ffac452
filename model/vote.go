package model

import "time"

// DemoVote 员工对一条demo的投票，(track_id, staff_id) 唯一，重投覆盖。
type DemoVote struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TrackID   int64     `json:"trackId" gorm:"uniqueIndex:uq_track_staff;not null"`
	StaffID   int64     `json:"staffId" gorm:"uniqueIndex:uq_track_staff;not null"`
	Value     int       `json:"value" gorm:"not null"` // +1 或 -1
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (DemoVote) TableName() string {
	return "demo_votes"
}
