package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// 员工角色
const (
	RoleOwner       = "owner"
	RoleManager     = "manager"
	RoleScout       = "scout"
	RoleSystemAdmin = "sysadmin"
)

// PermissionSet 员工级细粒度权限覆盖（JSON字段），键为action名。
// 存在即覆盖角色默认值，缺失则回落到角色默认表。
type PermissionSet map[string]bool

// Scan 实现 sql.Scanner 接口
func (p *PermissionSet) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*p = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*p = nil
		return nil
	}
	return json.Unmarshal(bytes, p)
}

// Value 实现 driver.Valuer 接口
func (p PermissionSet) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Staff represents a staff member account.
type Staff struct {
	ID           int64         `json:"id"`
	OrgID        int64         `json:"orgId"`
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"` // Not exposed in API responses
	Role         string        `json:"role"`
	Overrides    PermissionSet `json:"overrides,omitempty" gorm:"type:json"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}
