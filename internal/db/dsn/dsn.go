// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"

	"github.com/adopsbot/adopsbot/internal/config"
)

// Create builds the Data Source Name for the configured engine.
func Create(dbCfg *config.DB) string {
	switch dbCfg.GormEngine {
	case config.EnginePostgres:
		return Postgres(dbCfg)
	case config.EngineSQLite:
		return dbCfg.Name
	default:
		return MySQL(dbCfg)
	}
}

// MySQL builds a go-sql-driver/mysql DSN.
func MySQL(dbCfg *config.DB) string {
	out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Name,
		dbCfg.Extras,
	)

	return out
}

// Postgres builds a postgres URL. Extras are appended as query parameters.
func Postgres(dbCfg *config.DB) string {
	out := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Name,
	)

	if dbCfg.Extras != "" {
		out += "?" + dbCfg.Extras
	}

	return out
}
