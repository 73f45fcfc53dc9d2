package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named set of permissions. System roles are seeded at startup
// and immutable; custom roles are tenant-scoped.
type Role struct {
	ID          string      `gorm:"size:64;primaryKey" json:"id"`
	Name        string      `gorm:"size:100;not null" json:"name"`
	Description string      `gorm:"size:500" json:"description"`
	TenantID    string      `gorm:"size:128;index" json:"tenant_id,omitempty"`
	IsSystem    bool        `gorm:"default:false" json:"is_system"`
	Permissions StringSlice `gorm:"type:text" json:"permissions"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Role) TableName() string { return "roles" }

// RoleBinding assigns a role to a subject (user or API key id).
type RoleBinding struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	Subject   string    `gorm:"size:128;index;not null" json:"subject"`
	RoleID    string    `gorm:"size:64;index;not null" json:"role_id"`
	TenantID  string    `gorm:"size:128;index" json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoleBinding) TableName() string { return "role_bindings" }
