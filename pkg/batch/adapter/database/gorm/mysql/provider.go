// Package mysql registers the MySQL dialect of the gorm adapter.
package mysql

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/sheetflow/pkg/batch/core/config"
)

const dbType = "mysql"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the go-sql-driver DSN for cfg. Times are parsed as
// UTC and multi-statement migration files are allowed.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	driverCfg := mysqldriver.NewConfig()
	driverCfg.User = c.User
	driverCfg.Passwd = c.Password
	driverCfg.Net = "tcp"
	driverCfg.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	driverCfg.DBName = c.Database
	driverCfg.ParseTime = true
	driverCfg.Loc = time.UTC
	driverCfg.MultiStatements = true
	driverCfg.Params = map[string]string{"charset": "utf8mb4"}
	return driverCfg.FormatDSN()
}

// MySQLDBProvider serves "mysql" connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the MySQL provider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, dbType)}
}
