package models

import (
	"fmt"

	"github.com/teamforge/teamforge/internal/config"
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
	err := DB.AutoMigrate(
		&User{},
		&Team{},
		&TeamMembership{},
		&Task{},
		&Notification{},
		&RefreshToken{},
		&SystemConfig{},
		&SystemLog{},
	)
	if err != nil {
		return err
	}
	return EnsureScrumMasterIndex(DB)
}

// EnsureScrumMasterIndex adds a partial unique index so the database itself
// rejects a second scrum_master row, closing the window where two concurrent
// transactions each pass the in-transaction count check under READ COMMITTED.
// MySQL has no partial indexes; there the count checks stand alone.
func EnsureScrumMasterIndex(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return db.Exec(fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS uidx_users_single_scrum_master ON users (role) WHERE role = '%s'",
			GlobalRoleScrumMaster,
		)).Error
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default settings rows if they do not exist.
func SeedDefaultData() error {
	defaultConfigs := []SystemConfig{
		{Key: "digest_hour", Value: "9", Type: "int", Group: "digest", Label: "Daily Digest Hour"},
		{Key: "digest_minute", Value: "0", Type: "int", Group: "digest", Label: "Daily Digest Minute"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
		{Key: "auth_access_token_expire_hours", Value: "24", Type: "int", Group: "auth", Label: "Access Token Expire Hours"},
		{Key: "auth_refresh_token_expire_hours", Value: "720", Type: "int", Group: "auth", Label: "Refresh Token Expire Hours"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		DB.Model(&SystemConfig{}).Where("key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := DB.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
