package db

import (
	"fmt"

	"github.com/zulandar/huebot/internal/config"
	"github.com/zulandar/huebot/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model of the local store.
func AllModels() []interface{} {
	return []interface{}{
		&models.Credential{},
		&models.ChatSession{},
		&models.TranscriptEntry{},
		&models.Delivery{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Open connects and migrates in one step.
func Open(cfg config.StoreConfig) (*gorm.DB, error) {
	gdb, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
