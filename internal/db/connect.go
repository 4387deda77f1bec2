package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zulandar/huebot/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for a store configuration.
func Dialector(cfg config.StoreConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("db: sqlite path is required")
		}
		return sqlite.Open(cfg.Path), nil
	case "mysql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("db: mysql dsn is required")
		}
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Connect opens the local store. For sqlite the parent directory is created
// when missing.
func Connect(cfg config.StoreConfig) (*gorm.DB, error) {
	if (cfg.Driver == "" || cfg.Driver == "sqlite") && cfg.Path != "" && cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("db: create store dir: %w", err)
		}
	}
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", describe(cfg), err)
	}
	return gdb, nil
}

// describe names the store without leaking mysql credentials.
func describe(cfg config.StoreConfig) string {
	if cfg.Driver == "mysql" {
		return "mysql"
	}
	return "sqlite " + cfg.Path
}
