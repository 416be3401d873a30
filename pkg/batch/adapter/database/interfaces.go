// Package database declares the database connection abstractions the sheetflow
// repositories are written against.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/sheetflow/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/sheetflow/pkg/batch/core/adapter"
	"github.com/tigerroll/sheetflow/pkg/batch/core/tx"
)

// DBExecutor is every statement a repository may issue outside a transaction.
type DBExecutor interface {
	tx.TxExecutor
}

// DBConnection is a named, live database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection
	DBExecutor

	// RefreshConnection pings the database.
	RefreshConnection(ctx context.Context) error
	// Config returns the settings the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves database connections by name.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection returns a healthy connection, reconnecting if the ping fails.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider opens and caches connections of one database type.
type DBProvider interface {
	GetConnection(name string) (DBConnection, error)
	CloseAll() error
	Type() string
	// ForceReconnect closes and re-opens the named connection.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
