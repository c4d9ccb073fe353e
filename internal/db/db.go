package db

import (
	"fmt"
	"strings"

	"github.com/Suhaibinator/SModule/internal/config"
	"github.com/Suhaibinator/SModule/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the database selected by cfg.DbType and migrates the engine's own tables.
// Module tables are not touched here; they are owned by the migration executor.
func Init(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	dbType := strings.ToLower(cfg.DbType)
	log.Info("Initializing database connection", zap.String("type", dbType))

	switch dbType {
	case "postgres":
		if cfg.DbDsn == "" {
			return nil, fmt.Errorf("DB_DSN must be set for postgres database type")
		}
		dialector = postgres.Open(cfg.DbDsn)
		// Avoid logging potentially sensitive DSN
		log.Info("Using PostgreSQL DSN (details omitted)")
	case "sqlite":
		if cfg.SqlitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH must be set for sqlite database type")
		}
		dialector = sqlite.Open(cfg.SqlitePath)
		log.Info("Using SQLite database file", zap.String("path", cfg.SqlitePath))
	default:
		return nil, fmt.Errorf("invalid DB_TYPE: %s. Must be 'postgres' or 'sqlite'", cfg.DbType)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(ParseLogLevel(cfg.DbLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database (%s): %w", dbType, err)
	}
	log.Info("Database connection established", zap.String("type", dbType))

	if err := Migrate(gormDB); err != nil {
		return nil, fmt.Errorf("failed to migrate database (%s): %w", dbType, err)
	}
	log.Info("Engine tables migrated")

	return gormDB, nil
}

// Migrate creates or updates the engine tables (module records and the migration ledger).
func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(&models.Module{}, &models.SchemaMigration{})
}

// ParseLogLevel maps DB_LOG_LEVEL to a gorm logger level, defaulting to warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
