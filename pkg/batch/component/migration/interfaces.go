// Package migration applies the embedded store schema with golang-migrate.
package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/sheetflow/pkg/batch/adapter/database"
)

// MigrationsTable tracks applied schema versions.
const MigrationsTable = "sheetflow_migrations"

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations found under path.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Version reports the applied version and whether it is dirty.
	Version(ctx context.Context, migrationFS fs.FS, path string, tableName string) (uint, bool, error)
}

// MigratorProvider creates a Migrator bound to a connection.
type MigratorProvider interface {
	NewMigrator(dbConn database.DBConnection) Migrator
}
