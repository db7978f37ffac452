package model

import "time"

// Phase 常量：demo审听流水线的各个阶段，顺序即流转顺序。
// 数据库中按规范名存储，旧数据的别名（crate/status 混用时期）在仓库层解码。
const (
	PhaseInbox        = "inbox"
	PhaseSecondListen = "second-listen"
	PhaseTeamReview   = "team-review"
	PhaseContracting  = "contracting"
	PhaseUpcoming     = "upcoming"
	PhaseVault        = "vault"
)

// DemoTrack 一条demo投稿，在审听流水线中流转。
type DemoTrack struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	PublicID   string `json:"publicId" gorm:"size:36;uniqueIndex;not null"` // 对外UUID
	OrgID      int64  `json:"orgId" gorm:"index;not null"`
	ArtistName string `json:"artistName" gorm:"size:255;not null"`
	Title      string `json:"title" gorm:"size:255;not null"`
	Genre      string `json:"genre" gorm:"size:100"`
	BPM        int    `json:"bpm"`
	Energy     int    `json:"energy" gorm:"default:0"` // 0=未设置，1-5
	AudioLink  string `json:"audioLink" gorm:"size:767"`
	ObjectKey  string `json:"-" gorm:"size:767"` // MinIO 对象键，不直接暴露

	Phase           string `json:"phase" gorm:"size:20;default:'inbox';index"`
	Archived        bool   `json:"archived" gorm:"default:false;index"`
	RejectionReason string `json:"rejectionReason,omitempty" gorm:"size:500"`
	ContractSigned  bool   `json:"contractSigned" gorm:"default:false"`

	ReleaseDate       *time.Time `json:"releaseDate,omitempty"`
	TargetReleaseDate *time.Time `json:"targetReleaseDate,omitempty"`

	Votes   int   `json:"votes" gorm:"default:0"` // 缓存的投票总和，与投票行同事务更新
	Version int64 `json:"version" gorm:"default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (DemoTrack) TableName() string {
	return "demo_tracks"
}
