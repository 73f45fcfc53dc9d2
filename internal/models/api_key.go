package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey stores only the SHA-256 hash of an issued key. The raw key is
// returned exactly once at creation time.
type APIKey struct {
	ID          uuid.UUID   `gorm:"type:char(36);primaryKey" json:"id"`
	TenantID    string      `gorm:"size:128;uniqueIndex:idx_apikey_tenant_hash;index;not null" json:"tenant_id"`
	KeyHash     string      `gorm:"size:64;uniqueIndex:idx_apikey_tenant_hash;not null" json:"-"`
	Prefix      string      `gorm:"size:16;not null" json:"prefix"`
	Name        string      `gorm:"size:200" json:"name"`
	Permissions StringSlice `gorm:"type:text" json:"permissions"`
	IsActive    bool        `gorm:"default:true" json:"is_active"`
	Revoked     bool        `gorm:"default:false" json:"revoked"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time  `json:"last_used_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// Usable reports whether the key may authenticate at time t.
func (k *APIKey) Usable(t time.Time) bool {
	if !k.IsActive || k.Revoked {
		return false
	}
	if k.ExpiresAt != nil && t.After(*k.ExpiresAt) {
		return false
	}
	return true
}
