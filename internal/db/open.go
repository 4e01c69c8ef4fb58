// Package db opens the gorm database used for the audit trail.
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/adopsbot/adopsbot/internal/config"
	"github.com/adopsbot/adopsbot/internal/db/dsn"
	"github.com/adopsbot/adopsbot/internal/db/models"
)

// Open connects to the configured engine and migrates the schema.
func Open(cfg *config.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.GormEngine {
	case config.EngineMySQL:
		dialector = gormmysql.Open(dsn.MySQL(cfg))
	case config.EnginePostgres:
		dialector = gormpostgres.Open(dsn.Postgres(cfg))
	case config.EngineSQLite:
		dialector = sqlite.Open(cfg.Name)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownGormEngine, cfg.GormEngine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err = db.AutoMigrate(&models.AuditEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
