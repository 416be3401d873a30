// Package sqlite registers the SQLite dialect of the gorm adapter.
package sqlite

import (
	"errors"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

const dbType = "sqlite"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn := ConnectionString(cfg)
		if dsn == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(dsn), nil
	})
}

// ConnectionString returns the database file path with foreign keys and a busy
// timeout enabled.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Database == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(c.Database, "?") {
		sep = "&"
	}
	return c.Database + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// SQLiteDBProvider serves "sqlite" connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the SQLite provider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, dbType)}
}
