package models

import (
	"time"

	"gorm.io/gorm"
)

// AdminUser is a console user who authenticates with username/password and
// receives JWT access/refresh tokens.
type AdminUser struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password  string         `gorm:"size:255" json:"-"`
	Email     string         `gorm:"size:255" json:"email"`
	TenantID  string         `gorm:"size:128;index" json:"tenant_id"`
	RoleID    string         `gorm:"size:64;default:read_only" json:"role_id"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (AdminUser) TableName() string { return "admin_users" }
