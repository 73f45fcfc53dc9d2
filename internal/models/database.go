package models

import (
	"fmt"

	"github.com/costwatch/costwatch/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&UsageRecord{},
		&CostRecord{},
		&PricingTable{},
		&APIKey{},
		&Role{},
		&RoleBinding{},
		&AuditEvent{},
		&DlqItem{},
		&DecisionEvent{},
		&AdminUser{},
		&RefreshToken{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates the system roles if they do not exist.
// Permission strings are "resource:action" with an optional ":scope"
// suffix; "*" grants everything.
func SeedDefaultData() error {
	systemRoles := []Role{
		{
			ID:          "super_admin",
			Name:        "Super Administrator",
			Description: "Unrestricted access to every resource",
			IsSystem:    true,
			Permissions: StringSlice{"*"},
		},
		{
			ID:          "tenant_admin",
			Name:        "Tenant Administrator",
			Description: "Full access within the subject's tenant",
			IsSystem:    true,
			Permissions: StringSlice{
				"usage:read", "usage:write",
				"costs:read",
				"pricing:read", "pricing:write",
				"analytics:read",
				"budget:read", "budget:write",
				"admin:read", "admin:write",
			},
		},
		{
			ID:          "read_only",
			Name:        "Read Only",
			Description: "Read access to usage, costs and analytics",
			IsSystem:    true,
			Permissions: StringSlice{
				"usage:read", "costs:read", "pricing:read", "analytics:read", "budget:read",
			},
		},
		{
			ID:          "billing",
			Name:        "Billing",
			Description: "Cost and pricing visibility for finance teams",
			IsSystem:    true,
			Permissions: StringSlice{"costs:read", "pricing:read", "budget:read"},
		},
		{
			ID:          "auditor",
			Name:        "Auditor",
			Description: "Audit trail visibility only",
			IsSystem:    true,
			Permissions: StringSlice{"audit:read"},
		},
	}

	for _, role := range systemRoles {
		var count int64
		DB.Model(&Role{}).Where("id = ?", role.ID).Count(&count)
		if count == 0 {
			if err := DB.Create(&role).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
